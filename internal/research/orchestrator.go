package research

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/deepresearch/internal/telemetry"
	"github.com/mohammad-safakhou/deepresearch/provider"
	"github.com/mohammad-safakhou/deepresearch/tools/webfetch"
	"github.com/mohammad-safakhou/deepresearch/tools/websearch"
	searchmodels "github.com/mohammad-safakhou/deepresearch/tools/websearch/models"
)

// Config carries the orchestrator knobs.
type Config struct {
	DefaultModel string
	RAGTopK      int // retrieval store query size, default 5
}

// Orchestrator drives the research pipeline. All collaborators are injected
// once at construction and shared across invocations; Run itself holds no
// cross-request mutable state.
type Orchestrator struct {
	cfg       Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry

	llm       provider.Provider
	searcher  websearch.Searcher
	fetcher   webfetch.Fetcher
	retriever Retriever
	recorder  Recorder
	videos    VideoProvider
}

func NewOrchestrator(cfg Config, logger *log.Logger, tele *telemetry.Telemetry,
	llm provider.Provider, searcher websearch.Searcher, fetcher webfetch.Fetcher,
	retriever Retriever, recorder Recorder, videos VideoProvider) (*Orchestrator, error) {

	if llm == nil {
		return nil, errors.New("llm provider is required")
	}
	if searcher == nil {
		return nil, errors.New("search provider is required")
	}
	if fetcher == nil {
		return nil, errors.New("web fetcher is required")
	}
	if retriever == nil {
		return nil, errors.New("retrieval store is required")
	}
	if recorder == nil {
		return nil, errors.New("session recorder is required")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	if cfg.RAGTopK <= 0 {
		cfg.RAGTopK = 5
	}
	if videos == nil {
		videos = searcherVideos{searcher}
	}
	return &Orchestrator{
		cfg: cfg, logger: logger, telemetry: tele,
		llm: llm, searcher: searcher, fetcher: fetcher,
		retriever: retriever, recorder: recorder, videos: videos,
	}, nil
}

func (o *Orchestrator) model(m string) string {
	if m != "" {
		return m
	}
	return o.cfg.DefaultModel
}

// Run starts one research pipeline and returns its event stream. The stream
// carries answer_chunk events followed by exactly one terminal result or
// error event; progress goes to onProgress, in stage order, best-effort.
// The channel is unbuffered: every send is a cooperative yield.
func (o *Orchestrator) Run(ctx context.Context, req Request, onProgress ProgressFn) <-chan Event {
	events := make(chan Event)
	go o.run(ctx, req, onProgress, events)
	return events
}

// runState is the per-invocation scratchpad the stages fill in.
type runState struct {
	slug     string
	model    string
	start    time.Time
	analysis AnalysisResult
	subs     []string
	batch    RetrievalBatch
	ragCount int
}

func (o *Orchestrator) run(ctx context.Context, req Request, onProgress ProgressFn, events chan<- Event) {
	defer close(events)

	st := &runState{
		slug:  req.SessionHint,
		model: o.model(req.Model),
		start: time.Now(),
	}
	if st.slug == "" {
		st.slug = uuid.New().String()
	}

	// Session creation is fire-and-forget: a recorder outage must not block
	// the research itself.
	if err := o.recorder.CreateSession(ctx, st.slug, req.Query, st.model); err != nil {
		o.logger.Printf("session create failed (continuing): %v", err)
	}

	send := func(ev Event) bool {
		ev.SessionID = st.slug
		select {
		case events <- ev:
			o.telemetry.RecordEvent(string(ev.Type))
			return true
		case <-ctx.Done():
			return false
		}
	}
	progress := func(stage Stage) {
		if onProgress == nil {
			return
		}
		onProgress(stage, stageMessages[stage])
	}

	terr := o.pipeline(ctx, req.Query, st, progress, send)
	if terr != nil {
		o.fail(ctx, st, terr)
		send(Event{Type: EventError, Reason: terr.Reason, Message: terr.Message})
	}
}

// pipeline walks the stages. A non-nil return is one of the four terminal
// failures; soft failures never surface here.
func (o *Orchestrator) pipeline(ctx context.Context, query string, st *runState, progress func(Stage), send func(Event) bool) *TerminalError {
	// Stage 1: safety gate.
	progress(StageSafetyCheck)
	stop := o.stageTimer(StageSafetyCheck)
	safety := o.checkSafety(ctx, query)
	stop()
	if safety.Unsafe {
		return errUnsafeQuery
	}

	// Stage 2: advisory analysis.
	progress(StageQueryAnalysis)
	stop = o.stageTimer(StageQueryAnalysis)
	st.analysis = o.analyzeQuery(ctx, query)
	st.subs = o.decomposeQuery(ctx, query)
	stop()

	// Stage 3: mandatory web search.
	progress(StageWebSearch)
	stop = o.stageTimer(StageWebSearch)
	results, err := o.webSearch(ctx, query)
	stop()
	if err != nil {
		var terr *TerminalError
		if errors.As(err, &terr) {
			return terr
		}
		return errNoResults
	}
	st.batch.WebResults = results

	// Stage 4: bounded concurrent scraping, per-URL best-effort.
	progress(StageScraping)
	stop = o.stageTimer(StageScraping)
	st.batch.Scraped, st.batch.ScrapedOrder = o.scrape(ctx, results)
	stop()

	// Stage 5: index then query the retrieval store. Both soft.
	progress(StageIndexing)
	stop = o.stageTimer(StageIndexing)
	if n, err := o.retriever.IndexPages(ctx, st.batch.Scraped); err != nil {
		o.logger.Printf("indexing failed, continuing without store: %v", err)
	} else {
		o.telemetry.AddChunks(n)
	}
	rag := o.retriever.Query(ctx, query, o.cfg.RAGTopK)
	st.ragCount = len(rag.Hits)
	stop()

	// Stage 6: media fan-out. Images only when flagged; news and video
	// always. All best-effort, run in parallel.
	var wg sync.WaitGroup
	if st.analysis.NeedsImages {
		progress(StageImageSearch)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer o.stageTimer(StageImageSearch)()
			st.batch.Images = o.searchImages(ctx, query)
		}()
	}
	progress(StageNewsSearch)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer o.stageTimer(StageNewsSearch)()
		st.batch.News = o.searchNews(ctx, query)
	}()
	progress(StageVideoSearch)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer o.stageTimer(StageVideoSearch)()
		st.batch.Videos = o.searchVideos(ctx, query)
	}()
	wg.Wait()

	// Stage 7: context assembly with the ambiguity gate.
	contextText, err := o.assembleContext(rag, &st.batch, st.analysis)
	if err != nil {
		var terr *TerminalError
		if errors.As(err, &terr) {
			return terr
		}
		return &TerminalError{Reason: ReasonSynthesis, Message: fmt.Sprintf("Research failed: %v", err)}
	}

	// Stage 8: streamed synthesis. Fragments go out as they arrive.
	progress(StageSynthesis)
	stop = o.stageTimer(StageSynthesis)
	prompt := buildPrompt(query, st.subs, contextText, &st.batch)
	answer, err := o.streamAnswer(ctx, st.model, prompt, func(chunk string) error {
		if !send(Event{Type: EventAnswerChunk, Chunk: chunk}) {
			return context.Canceled
		}
		return nil
	})
	stop()
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "Unknown error occurred"
		}
		return &TerminalError{Reason: ReasonSynthesis, Message: fmt.Sprintf("Research failed: %s", msg)}
	}

	// Stage 9: finalize, then emit the terminal result.
	progress(StageFinalizing)
	res := o.buildResult(st, answer)
	o.finalize(ctx, st, res)
	send(Event{Type: EventResult, Result: res})
	return nil
}

func (o *Orchestrator) buildResult(st *runState, answer string) *Result {
	sources := append([]string{}, st.batch.ScrapedOrder...)
	resources := append([]string{}, sources...)
	for _, r := range st.batch.WebResults {
		resources = append(resources, r.URL)
	}
	for _, v := range st.batch.Videos {
		resources = append(resources, v.URL)
	}
	for _, n := range st.batch.News {
		resources = append(resources, n.URL)
	}

	images := st.batch.Images
	if images == nil {
		images = []searchmodels.ImageItem{}
	}
	news := st.batch.News
	if news == nil {
		news = []searchmodels.NewsItem{}
	}
	videos := st.batch.Videos
	if videos == nil {
		videos = []VideoDetail{}
	}

	return &Result{
		Answer:          answer,
		Sources:         sources,
		Images:          images,
		News:            news,
		Videos:          videos,
		RAGResultsCount: st.ragCount,
		Metadata: ResultMetadata{
			ResearchTime: time.Since(st.start).Seconds(),
			SourcesCount: len(sources),
			ImagesCount:  len(images),
			NewsCount:    len(news),
			Model:        st.model,
			SessionID:    st.slug,
		},
	}
}

// finalize applies the running->completed transition. Fire-and-forget: a
// recorder failure is logged, never surfaced. Runs on a detached context so
// a disconnected caller still gets a finalized session.
func (o *Orchestrator) finalize(ctx context.Context, st *runState, res *Result) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	duration := time.Since(st.start).Seconds()
	resources := append([]string{}, res.Sources...)
	for _, r := range st.batch.WebResults {
		resources = append(resources, r.URL)
	}
	for _, v := range st.batch.Videos {
		resources = append(resources, v.URL)
	}
	for _, n := range st.batch.News {
		resources = append(resources, n.URL)
	}

	meta := map[string]interface{}{
		"sub_questions":     st.subs,
		"images":            res.Images,
		"youtube":           res.Videos,
		"news":              res.News,
		"rag_results_count": st.ragCount,
	}
	if err := o.recorder.Finalize(fctx, st.slug, "completed", duration, res.Answer, resources, meta); err != nil {
		o.logger.Printf("session finalize failed (swallowed): %v", err)
	}
	o.telemetry.RecordResearch("completed", time.Since(st.start))
}

// fail applies the running->failed transition with whatever partial state
// the pipeline had, on a detached context. Also fire-and-forget.
func (o *Orchestrator) fail(ctx context.Context, st *runState, terr *TerminalError) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	var resources []string
	resources = append(resources, st.batch.ScrapedOrder...)
	for _, r := range st.batch.WebResults {
		resources = append(resources, r.URL)
	}
	meta := map[string]interface{}{
		"error":         terr.Reason,
		"error_message": terr.Message,
	}
	if len(st.subs) > 0 {
		meta["sub_questions"] = st.subs
	}
	duration := time.Since(st.start).Seconds()
	if err := o.recorder.Finalize(fctx, st.slug, "failed", duration, "", resources, meta); err != nil {
		o.logger.Printf("session fail-finalize failed (swallowed): %v", err)
	}
	o.telemetry.RecordResearch("failed", time.Since(st.start))
}

func (o *Orchestrator) stageTimer(stage Stage) func() {
	start := time.Now()
	return func() {
		o.telemetry.ObserveStage(string(stage), time.Since(start))
	}
}

// searcherVideos adapts the search provider into a VideoProvider when no
// richer video backend is configured.
type searcherVideos struct {
	s websearch.Searcher
}

func (v searcherVideos) Search(ctx context.Context, q string, k int) ([]searchmodels.VideoItem, error) {
	return v.s.Videos(ctx, q, k)
}

func (v searcherVideos) Details(_ context.Context, item searchmodels.VideoItem) (searchmodels.VideoItem, error) {
	return item, nil
}

func (v searcherVideos) Transcript(context.Context, searchmodels.VideoItem) (string, error) {
	return "", nil
}
