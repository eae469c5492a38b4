// Package monitoring serves an HTTP API for inspecting and controlling a
// running bridge.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/awygle/udptherbone/observability"
	"github.com/awygle/udptherbone/sim/id"
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/sim/timing"
	"github.com/awygle/udptherbone/tracing"
)

// Monitor exposes a domain over HTTP. Reads of component state hold the
// engine so that they never observe a half-done step.
type Monitor struct {
	engine     timing.Engine
	domain     *modeling.Domain
	counts     *tracing.CountTracer
	portNumber int
	logger     zerolog.Logger

	pauseLock sync.Mutex
	paused    bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{logger: zerolog.Nop()}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// refused and a random port is used instead.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn().
			Int("port", portNumber).
			Msg("monitor port not allowed, using a random port")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger used for requests.
func (m *Monitor) WithLogger(logger zerolog.Logger) *Monitor {
	m.logger = logger
	return m
}

// RegisterEngine registers the engine that drives the domain.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e
}

// RegisterDomain registers the domain whose components and channels are
// listed.
func (m *Monitor) RegisterDomain(d *modeling.Domain) {
	m.domain = d
}

// RegisterCounts registers the tracer reported under diagnostics.
func (m *Monitor) RegisterCounts(t *tracing.CountTracer) {
	m.counts = t
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        id.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			bars = append(bars, b)
		}
	}

	m.progressBars = bars
}

// Router returns the HTTP handler of the monitor.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(observability.RequestLogger(m.logger))

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/channels", m.listChannels)
	r.HandleFunc("/api/diagnostics", m.listDiagnostics)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts serving in the background and returns the address it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("monitor listen: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	m.logger.Info().Str("url", url).Msg("monitoring bridge")

	go func() {
		err := http.Serve(listener, m.Router())
		if err != nil && !errors.Is(err, net.ErrClosed) {
			m.logger.Error().Err(err).Msg("monitor stopped")
		}
	}()

	return url, nil
}

// OpenBrowser opens url in the default browser.
func (m *Monitor) OpenBrowser(url string) {
	browser.Stdout = os.Stderr

	err := browser.OpenURL(url)
	if err != nil {
		m.logger.Warn().Err(err).Msg("cannot open browser")
	}
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.hasEngineOr503(w) {
		return
	}

	m.pauseLock.Lock()
	defer m.pauseLock.Unlock()

	if !m.paused {
		m.engine.Pause()
		m.paused = true
	}

	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.hasEngineOr503(w) {
		return
	}

	m.pauseLock.Lock()
	defer m.pauseLock.Unlock()

	if m.paused {
		m.engine.Continue()
		m.paused = false
	}

	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) hasEngineOr503(w http.ResponseWriter) bool {
	if m.engine != nil {
		return true
	}

	http.Error(w, "no engine registered", http.StatusServiceUnavailable)

	return false
}

// hold runs fn while the engine is kept between events.
func (m *Monitor) hold(fn func()) {
	m.pauseLock.Lock()
	defer m.pauseLock.Unlock()

	if m.engine != nil && !m.paused {
		m.engine.Pause()
		defer m.engine.Continue()
	}

	fn()
}

type nowRsp struct {
	Now    float64 `json:"now"`
	Steps  uint64  `json:"steps"`
	Paused bool    `json:"paused"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	rsp := nowRsp{}

	m.hold(func() {
		if m.engine != nil {
			rsp.Now = m.engine.Now()
		}

		if m.domain != nil {
			rsp.Steps = m.domain.Steps()
		}

		rsp.Paused = m.paused
	})

	writeJSON(w, rsp)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := []string{}

	if m.domain != nil {
		for _, c := range m.domain.Components() {
			names = append(names, c.Name())
		}
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	buf := bytes.NewBuffer(nil)

	var err error

	m.hold(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(component)
		serializer.SetMaxDepth(1)
		err = serializer.Serialize(buf)
	})

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(buf.Bytes())
	dieOnErr(err)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) modeling.Component {
	if m.domain != nil {
		for _, c := range m.domain.Components() {
			if c.Name() == name {
				return c
			}
		}
	}

	http.Error(w, "Component not found", http.StatusNotFound)

	return nil
}

type channelRsp struct {
	Channel string `json:"channel"`
	Level   int    `json:"level"`
	Cap     int    `json:"cap"`
}

func (m *Monitor) listChannels(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := channelsParseParams(r)
	if err != nil {
		http.Error(w, "Error: "+err.Error(), http.StatusBadRequest)
		return
	}

	var rsp []channelRsp

	m.hold(func() {
		if m.domain == nil {
			return
		}

		for _, c := range m.domain.Channels() {
			rsp = append(rsp, channelRsp{
				Channel: c.Name(),
				Level:   c.Size(),
				Cap:     c.Capacity(),
			})
		}
	})

	writeJSON(w, sortAndSelectChannels(rsp, sortMethod, limit, offset))
}

func channelsParseParams(
	r *http.Request,
) (sortMethod string, limit, offset int, err error) {
	sortMethod = r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method %q, allowed values are `level` and `percent`",
			sortMethod)
	}

	limit, err = intParam(r, "limit")
	if err != nil {
		return "", 0, 0, err
	}

	offset, err = intParam(r, "offset")
	if err != nil {
		return "", 0, 0, err
	}

	return sortMethod, limit, offset, nil
}

func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}

	return n, nil
}

func channelPercent(c channelRsp) float64 {
	if c.Cap == 0 {
		return 0
	}

	return float64(c.Level) / float64(c.Cap)
}

// sortAndSelectChannels orders the fullest channels first. A limit of 0
// returns everything after offset.
func sortAndSelectChannels(
	channels []channelRsp,
	sortMethod string,
	limit, offset int,
) []channelRsp {
	sorted := make([]channelRsp, len(channels))
	copy(sorted, channels)

	byLevel := func(i, j int) int {
		return sorted[i].Level - sorted[j].Level
	}
	byPercent := func(i, j int) int {
		pi, pj := channelPercent(sorted[i]), channelPercent(sorted[j])
		switch {
		case pi > pj:
			return 1
		case pi < pj:
			return -1
		default:
			return 0
		}
	}

	first, second := byPercent, byLevel
	if sortMethod == "level" {
		first, second = byLevel, byPercent
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if c := first(i, j); c != 0 {
			return c > 0
		}

		return second(i, j) > 0
	})

	if offset > len(sorted) {
		offset = len(sorted)
	}

	sorted = sorted[offset:]

	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}

	return sorted
}

func (m *Monitor) listDiagnostics(w http.ResponseWriter, _ *http.Request) {
	counts := []tracing.Count{}
	if m.counts != nil {
		counts = m.counts.Counts()
	}

	writeJSON(w, counts)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("ms"); s != "" {
		ms, err := strconv.Atoi(s)
		if err != nil || ms <= 0 {
			http.Error(w, "invalid ms", http.StatusBadRequest)
			return
		}

		duration = time.Duration(ms) * time.Millisecond
	}

	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(duration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
