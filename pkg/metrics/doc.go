// Package metrics exports Prometheus metrics for sessions, dispatch and the
// frame pool.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(metrics.WithRegistry(reg))
//	_ = m.WatchPool(frame.Default)
//
//	s, _ := session.New(dialer, d, session.WithObserver(m))
//	reg, _ := builder.Build(dispatch.WithObserver(m))
//
//	go metrics.Serve(ctx, ":9100", reg, logger)
package metrics
