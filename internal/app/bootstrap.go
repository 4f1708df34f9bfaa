package app

import (
	"errors"

	"github.com/mirrorchyan/storefront/internal/config"
	"github.com/mirrorchyan/storefront/internal/logger"
	"github.com/mirrorchyan/storefront/internal/provider"
	"github.com/mirrorchyan/storefront/internal/router"
	"github.com/mirrorchyan/storefront/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	container := provider.NewContainer(cfg)

	var services []Service

	// HTTP 服务与结账会话回收，会话只存在于 API 进程内存中
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		services = append(services,
			NewHTTPService(cfg.Server, engine),
			NewSessionSweeper(container.CheckoutManager, cfg.Checkout.SessionSweep()),
		)
	}

	if mode == ModeAll || mode == ModeWorker {
		// 队列关闭时不启动消费者，超时由定时清扫兜底
		if cfg.Queue.Enabled {
			consumer := worker.NewConsumer(container)
			workerService, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		} else {
			logger.Warnw("worker_queue_disabled", "mode", mode)
		}

		scheduler, err := worker.NewScheduler(container.CatalogService, container.LedgerService, worker.SchedulerOptions{
			WarmupSpec: cfg.Catalog.WarmupSpec,
			SweepSpec:  cfg.Checkout.LedgerSweepSpec,
		})
		if err != nil {
			return nil, err
		}
		services = append(services, scheduler)
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	opts.Logger.Infow("app_start", "addr", opts.Config.Server.Addr(), "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
