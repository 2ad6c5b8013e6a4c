package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"sync"
	"time"
)

const (
	NumActiveConnections = "NumActiveConnections"
	NumActiveRooms       = "NumActiveRooms"
	NumPublishedEvents   = "NumPublishedEvents"
	NumDroppedDeliveries = "NumDroppedDeliveries"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
}

// StatsUpdater serializes counter updates through a single goroutine and
// serves the counters at /debug/vars.
type StatsUpdater struct {
	vars       *expvar.Map
	updateChan chan metricsUpdateReq
	stopOnce   sync.Once
	done       chan struct{}
}

type metricsUpdateReq struct {
	name  string
	value int64
}

var (
	varsOnce sync.Once
	varsMap  *expvar.Map
)

// publishedMap returns the process-wide expvar map. expvar panics on
// duplicate names, so the map is published once and reset on reuse.
func publishedMap() *expvar.Map {
	varsOnce.Do(func() {
		varsMap = expvar.NewMap("chatrooms")
	})
	varsMap.Init()
	return varsMap
}

func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		vars:       publishedMap(),
		updateChan: make(chan metricsUpdateReq, 512),
		done:       make(chan struct{}),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))

	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))
	for _, name := range []string{NumActiveConnections, NumActiveRooms, NumPublishedEvents, NumDroppedDeliveries} {
		su.RegisterMetric(name)
	}

	return su
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	data := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		data[kv.Key] = value
	})

	json.NewEncoder(w).Encode(data)
}

func (su *StatsUpdater) updateMetrics() {
	defer close(su.done)
	for req := range su.updateChan {
		metric, ok := su.vars.Get(req.name).(*expvar.Int)
		if !ok {
			continue
		}
		metric.Add(req.value)
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.updateChan <- metricsUpdateReq{name: name, value: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.updateChan <- metricsUpdateReq{name: name, value: -1}
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

// Value returns the current value of a registered counter.
func (su *StatsUpdater) Value(name string) int64 {
	if metric, ok := su.vars.Get(name).(*expvar.Int); ok {
		return metric.Value()
	}
	return 0
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

// Stop drains pending updates. Incr and Decr must not be called afterwards.
func (su *StatsUpdater) Stop() {
	su.stopOnce.Do(func() {
		close(su.updateChan)
	})
	<-su.done
}
