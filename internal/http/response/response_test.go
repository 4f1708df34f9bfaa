package response

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	return body
}

func TestErrorAttachesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(RequestIDKey, "req-1")

	ErrorWithData(c, CodeForbidden, "blocked", gin.H{"alternatives": "x"})
	body := decode(t, w)
	if body["status_code"].(float64) != CodeForbidden || body["msg"] != "blocked" {
		t.Fatalf("unexpected envelope %v", body)
	}
	data := body["data"].(map[string]interface{})
	if data["request_id"] != "req-1" || data["alternatives"] != "x" {
		t.Fatalf("unexpected data %v", data)
	}
}

func TestErrorWithoutRequestIDHasNullData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Unauthorized(c, "denied")
	body := decode(t, w)
	if body["status_code"].(float64) != CodeUnauthorized || body["data"] != nil {
		t.Fatalf("unexpected envelope %v", body)
	}
}

func TestSuccessEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Success(c, gin.H{"ok": true})
	body := decode(t, w)
	if body["status_code"].(float64) != CodeOK || body["msg"] != "success" {
		t.Fatalf("unexpected envelope %v", body)
	}
}
