package prom

import (
	"fmt"
	"sync"

	xhttp "github.com/nimasrn/credit-gateway/pkg/http"
	"github.com/nimasrn/credit-gateway/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemLedger  = "ledger"
	SystemGateway = "gateway"
)

const (
	MetricSettlementsTotal       = "settlements_total"
	MetricOrdersTotal            = "orders_total"
	MetricCreditsMovedTotal      = "credits_moved_total"
	MetricSettlementDuration     = "settlement_duration_seconds"
	MetricGatewayRequestDuration = "request_duration_seconds"
	MetricGatewayCircuitOpen     = "circuit_open"
)

const (
	TypeCounter      = "counter"
	TypeCounterVec   = "counterVec"
	TypeHistogram    = "histogram"
	TypeHistogramVec = "histogramVec"
	TypeGaugeVec     = "gaugeVec"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var registerer prometheus.Registerer = prometheus.DefaultRegisterer

var MetricCollectionCounters = make(map[string]prometheus.Counter)
var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionGaugeVec = make(map[string]*prometheus.GaugeVec)
var MetricCollectionHistogram = make(map[string]prometheus.Histogram)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

func Create(host string, env string, nameSpace string) error {
	return CreateWithRegisterer(prometheus.DefaultRegisterer, host, env, nameSpace)
}

// CreateWithRegisterer registers the service metrics on reg. Metrics already
// created by an earlier call are kept.
func CreateWithRegisterer(reg prometheus.Registerer, host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	registerer = reg
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	// Ledger
	hasError(createCounterVec(SystemLedger, MetricSettlementsTotal, []string{"outcome"}))
	hasError(createCounterVec(SystemLedger, MetricOrdersTotal, []string{"outcome"}))
	hasError(createCounterVec(SystemLedger, MetricCreditsMovedTotal, []string{"type"}))
	hasError(createHistogram(SystemLedger, MetricSettlementDuration))

	// Payment gateway
	hasError(createHistogramVec(SystemGateway, MetricGatewayRequestDuration, []string{"operation", "outcome"}))
	hasError(createGaugeVec(SystemGateway, MetricGatewayCircuitOpen, []string{"provider"}))

	return err
}

func CreateMetric(metricType, metricSubsystem, metricName string, labelsValues ...string) error {
	switch metricType {
	case TypeCounter:
		return createCounter(metricSubsystem, metricName)
	case TypeCounterVec:
		return createCounterVec(metricSubsystem, metricName, labelsValues)
	case TypeHistogram:
		return createHistogram(metricSubsystem, metricName)
	case TypeHistogramVec:
		return createHistogramVec(metricSubsystem, metricName, labelsValues)
	case TypeGaugeVec:
		return createGaugeVec(metricSubsystem, metricName, labelsValues)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounter(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionCounters[subsystem+name]; ok {
		return nil
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	})
	if err := registerer.Register(c); err != nil {
		return err
	}
	MetricCollectionCounters[subsystem+name] = c
	return nil
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		return nil
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	}, labels)
	if err := registerer.Register(c); err != nil {
		return err
	}
	MetricCollectionCounterVec[subsystem+name] = c
	return nil
}

func createHistogram(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionHistogram[subsystem+name]; ok {
		return nil
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	})
	if err := registerer.Register(h); err != nil {
		return err
	}
	MetricCollectionHistogram[subsystem+name] = h
	return nil
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		return nil
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	}, labels)
	if err := registerer.Register(h); err != nil {
		return err
	}
	MetricCollectionHistogramVec[subsystem+name] = h
	return nil
}

func createGaugeVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		return nil
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	}, labels)
	if err := registerer.Register(g); err != nil {
		return err
	}
	MetricCollectionGaugeVec[subsystem+name] = g
	return nil
}

func IncCounter(subsystem, name string) {
	AddCounter(subsystem, name, 1)
}

func AddCounter(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounters[subsystem+name]; ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func SetGaugeVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Set(num)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddHistogram(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogram[subsystem+name]; ok {
		v.Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram not found", "subsystem", subsystem, "name", name)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

// Settlement outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeReplayed  = "replayed"
	OutcomeRejected  = "rejected"
	OutcomeLostRace  = "lost_race"
	OutcomeError     = "error"
	OutcomeCreated   = "created"
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
)

func IncSettlement(outcome string) {
	IncCounterVec(SystemLedger, MetricSettlementsTotal, outcome)
}

func IncOrder(outcome string) {
	IncCounterVec(SystemLedger, MetricOrdersTotal, outcome)
}

func AddCreditsMoved(txnType string, credits int64) {
	AddCounterVec(SystemLedger, MetricCreditsMovedTotal, float64(credits), txnType)
}

func ObserveSettlementDuration(seconds float64) {
	AddHistogram(SystemLedger, MetricSettlementDuration, seconds)
}

func ObserveGatewayRequest(operation, outcome string, seconds float64) {
	AddHistogramVec(SystemGateway, MetricGatewayRequestDuration, seconds, operation, outcome)
}

func SetCircuitOpen(provider string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	SetGaugeVec(SystemGateway, MetricGatewayCircuitOpen, v, provider)
}
