package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/sim/timing"
	"github.com/awygle/udptherbone/stream"
	"github.com/awygle/udptherbone/tracing"
)

type idleComponent struct {
	modeling.ComponentBase

	ticks int
}

func (c *idleComponent) Tick() bool {
	c.ticks++
	return false
}

func get(h http.Handler, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	return rec
}

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		domain *modeling.Domain
		engine *timing.SerialEngine
		src    *stream.Source
		h      http.Handler
	)

	BeforeEach(func() {
		domain = modeling.NewDomain("Dev")
		in := stream.NewChannel("Dev.In", 4)
		out := stream.NewChannel("Dev.Out", 0)
		src = stream.NewSource("Dev.Src", in)

		domain.AddComponent(src)
		domain.AddComponent(&idleComponent{
			ComponentBase: modeling.MakeComponentBase("Dev.Idle"),
		})
		domain.AddChannel(in)
		domain.AddChannel(out)

		engine = timing.NewSerialEngine()
		domain.AttachEngine(engine, 1*timing.MHz)

		m = NewMonitor()
		m.RegisterDomain(domain)
		m.RegisterEngine(engine)
		h = m.Router()
	})

	It("should list components", func() {
		rec := get(h, "/api/list_components")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`["Dev.Src","Dev.Idle"]`))
	})

	It("should serialize a component", func() {
		Expect(get(h, "/api/component/Dev.Idle").Code).To(Equal(http.StatusOK))
		Expect(get(h, "/api/component/Dev.Nope").Code).
			To(Equal(http.StatusNotFound))
	})

	It("should report the step count", func() {
		domain.StepN(3)

		rec := get(h, "/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).
			To(MatchJSON(`{"now":0,"steps":3,"paused":false}`))
	})

	It("should pause and continue the engine", func() {
		Expect(get(h, "/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get(h, "/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get(h, "/api/now").Body.String()).To(ContainSubstring(`"paused":true`))

		Expect(get(h, "/api/continue").Code).To(Equal(http.StatusOK))
		Expect(get(h, "/api/now").Body.String()).To(ContainSubstring(`"paused":false`))

		src.PushBytes([]byte{1, 2, 3})
		domain.TickLater()
		Expect(engine.Run()).To(Succeed())
		Expect(src.Pending()).To(Equal(0))
	})

	It("should refuse to pause without an engine", func() {
		m = NewMonitor()
		Expect(get(m.Router(), "/api/pause").Code).
			To(Equal(http.StatusServiceUnavailable))
	})

	It("should list channels with the fullest first", func() {
		src.PushBytes([]byte{1, 2, 3})
		domain.StepN(2)

		rec := get(h, "/api/channels?sort=level&limit=1")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).
			To(MatchJSON(`[{"channel":"Dev.In","level":2,"cap":4}]`))
	})

	It("should reject bad channel queries", func() {
		Expect(get(h, "/api/channels?sort=name").Code).
			To(Equal(http.StatusBadRequest))
		Expect(get(h, "/api/channels?limit=x").Code).
			To(Equal(http.StatusBadRequest))
		Expect(get(h, "/api/channels?offset=-1").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should report diagnostics", func() {
		counts := tracing.NewCountTracer()
		counts.Trace(tracing.Event{
			Component: "Dev.Src",
			Pos:       stream.HookPosSourceSend,
		})
		m.RegisterCounts(counts)

		rec := get(h, "/api/diagnostics")

		Expect(rec.Body.String()).To(MatchJSON(
			`[{"component":"Dev.Src","pos":"SourceSend","count":1}]`))
	})

	It("should list and complete progress bars", func() {
		bar := m.CreateProgressBar("records", 10)
		bar.IncrementInProgress(4)
		bar.MoveInProgressToFinished(3)

		var bars []map[string]interface{}
		Expect(json.Unmarshal(get(h, "/api/progress").Body.Bytes(), &bars)).
			To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["name"]).To(Equal("records"))
		Expect(bars[0]["finished"]).To(BeNumerically("==", 3))
		Expect(bars[0]["in_progress"]).To(BeNumerically("==", 1))

		m.CompleteProgressBar(bar)
		Expect(get(h, "/api/progress").Body.String()).To(MatchJSON(`[]`))
	})

	It("should move a progress bar on hook events", func() {
		start := &hooking.HookPos{Name: "Start"}
		finish := &hooking.HookPos{Name: "Finish"}
		bar := m.CreateProgressBar("records", 0)
		t := NewProgressTracer(bar, start, finish)

		t.Trace(tracing.Event{Pos: start})
		t.Trace(tracing.Event{Pos: start})
		t.Trace(tracing.Event{Pos: stream.HookPosSourceSend})
		t.Trace(tracing.Event{Pos: finish})

		var bars []map[string]interface{}
		Expect(json.Unmarshal(get(h, "/api/progress").Body.Bytes(), &bars)).
			To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["in_progress"]).To(BeNumerically("==", 1))
		Expect(bars[0]["finished"]).To(BeNumerically("==", 1))
	})

	It("should report resources", func() {
		rec := get(h, "/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("memory_size"))
	})

	It("should reject a bad profile duration", func() {
		Expect(get(h, "/api/profile?ms=0").Code).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("sortAndSelectChannels", func() {
	channels := []channelRsp{
		{Channel: "a", Level: 1, Cap: 2},
		{Channel: "b", Level: 2, Cap: 8},
		{Channel: "c", Level: 2, Cap: 2},
		{Channel: "d", Level: 0, Cap: 2},
	}

	names := func(cs []channelRsp) []string {
		var n []string
		for _, c := range cs {
			n = append(n, c.Channel)
		}

		return n
	}

	It("should sort by percent", func() {
		Expect(names(sortAndSelectChannels(channels, "percent", 0, 0))).
			To(Equal([]string{"c", "a", "b", "d"}))
	})

	It("should sort by level", func() {
		Expect(names(sortAndSelectChannels(channels, "level", 0, 0))).
			To(Equal([]string{"c", "b", "a", "d"}))
	})

	It("should apply offset and limit", func() {
		Expect(names(sortAndSelectChannels(channels, "level", 2, 1))).
			To(Equal([]string{"b", "a"}))
		Expect(sortAndSelectChannels(channels, "level", 0, 9)).To(BeEmpty())
	})
})

var _ = Describe("WithPortNumber", func() {
	It("should refuse privileged ports", func() {
		Expect(NewMonitor().WithPortNumber(80).portNumber).To(Equal(0))
		Expect(NewMonitor().WithPortNumber(8080).portNumber).To(Equal(8080))
	})
})
