package haystack

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// FXModule provides a *Tracer built from a supplied Config.
//
//	app := fx.New(
//		fx.Supply(haystack.DefaultConfig()),
//		haystack.FXModule,
//	)
var FXModule = fx.Module("haystack",
	fx.Provide(ProvideTracer),
	fx.Invoke(RegisterTracerLifecycle),
)

// TracerParams are the dependencies of ProvideTracer.
type TracerParams struct {
	fx.In

	Config     Config
	Logger     *zap.Logger           `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// ProvideTracer builds the tracer, preferring an injected logger and
// registering metrics with the injected registerer when enabled.
func ProvideTracer(p TracerParams) (*Tracer, error) {
	var opts []Option
	if p.Logger != nil {
		opts = append(opts, WithLogger(p.Logger))
	}
	if p.Registerer != nil {
		opts = append(opts, WithRegisterer(p.Registerer))
	}
	return NewFromConfig(p.Config, opts...)
}

// RegisterTracerLifecycle closes the tracer when the application stops.
func RegisterTracerLifecycle(lc fx.Lifecycle, tracer *Tracer) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			tracer.logger.Info("shutting down tracer")
			tracer.Close()
			return nil
		},
	})
}
