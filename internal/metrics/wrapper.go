package metrics

// MetricsWrapper adapts Metrics to the narrow interfaces the classifier,
// feature layer, pipeline and server depend on.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) Metrics() *Metrics { return w.m }

// classifier

func (w *MetricsWrapper) ModelLearnInc()           { w.m.LearnTotal.Inc() }
func (w *MetricsWrapper) ModelSplitsInc()          { w.m.SplitsTotal.Inc() }
func (w *MetricsWrapper) ModelLeavesSet(v float64) { w.m.TreeLeaves.Set(v) }
func (w *MetricsWrapper) ModelDepthSet(v float64)  { w.m.TreeDepth.Set(v) }

// feature layer

func (w *MetricsWrapper) FeatureErrorsInc() { w.m.FeatureErrors.Inc() }

func (w *MetricsWrapper) FeatureSampleCount(count int) {
	w.m.FeatureSamples.Add(float64(count))
}

// pipeline

func (w *MetricsWrapper) PredictionInc(label string) {
	w.m.Predictions.WithLabelValues(label).Inc()
}

func (w *MetricsWrapper) NoDataPredictionInc()               { w.m.NoDataPredictions.Inc() }
func (w *MetricsWrapper) ObservationInc()                    { w.m.Observations.Inc() }
func (w *MetricsWrapper) ProcessLatencyObserve(secs float64) { w.m.ProcessLatency.Observe(secs) }
func (w *MetricsWrapper) SnapshotInc()                       { w.m.Snapshots.Inc() }
func (w *MetricsWrapper) ErrorsInc()                         { w.m.ErrorsTotal.Inc() }

// server

func (w *MetricsWrapper) StreamOpened() { w.m.StreamConnections.Inc() }
func (w *MetricsWrapper) StreamClosed() { w.m.StreamConnections.Dec() }
