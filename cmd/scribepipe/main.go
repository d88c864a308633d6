package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"

	"github.com/scribepipe/scribepipe/internal/audio"
	"github.com/scribepipe/scribepipe/internal/config"
	"github.com/scribepipe/scribepipe/internal/document"
	"github.com/scribepipe/scribepipe/internal/history"
	"github.com/scribepipe/scribepipe/internal/job"
	"github.com/scribepipe/scribepipe/internal/models"
	"github.com/scribepipe/scribepipe/internal/profile"
	"github.com/scribepipe/scribepipe/internal/transcribe"
)

// paramFlags collects repeated -param key=value flags, parsing values as
// bool, int, or float before falling back to string.
type paramFlags struct {
	params profile.Params
}

func (p *paramFlags) String() string {
	parts := make([]string, 0, len(p.params))
	for k, v := range p.params {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ",")
}

func (p *paramFlags) Set(s string) error {
	key, raw, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	if p.params == nil {
		p.params = profile.Params{}
	}
	switch {
	case raw == "true" || raw == "false":
		p.params[key] = raw == "true"
	default:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			p.params[key] = n
		} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
			p.params[key] = f
		} else {
			p.params[key] = raw
		}
	}
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/scribepipe/config.yaml)")
	profileID := flag.String("profile", "", "transcription profile to use (overrides config)")
	record := flag.Bool("record", false, "record from the microphone and transcribe")
	outPath := flag.String("out", "", "write the transcript document to this file")
	reference := flag.String("reference", "", "reference text file; print word error rate against it")
	listProfiles := flag.Bool("list-profiles", false, "list available transcription profiles and exit")
	historyLimit := flag.Int("history", 0, "show the N most recent transcriptions and exit")
	downloadModel := flag.Bool("download-model", false, "download the configured model asset and exit")
	var params paramFlags
	flag.Var(&params, "param", "profile parameter as key=value (repeatable)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("config validation: %v", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(log)

	registry := profile.NewRegistry()
	err = profile.RegisterBuiltins(registry, profile.BuiltinOptions{
		Model: func() (transcribe.Model, error) {
			return transcribe.NewExecModel(cfg.Model.Command,
				time.Duration(cfg.Model.TimeoutSeconds*float64(time.Second)))
		},
	})
	if err != nil {
		fatal("registering profiles: %v", err)
	}

	switch {
	case *listProfiles:
		printProfiles(registry)
		return
	case *historyLimit > 0:
		if err := printHistory(cfg, *historyLimit); err != nil {
			fatal("history: %v", err)
		}
		return
	case *downloadModel:
		if cfg.Model.AssetURL == "" {
			fatal("model.asset_url is not configured")
		}
		if err := models.Download(context.Background(), cfg.Model.AssetURL, cfg.Model.AssetPath); err != nil {
			fatal("download: %v", err)
		}
		return
	}

	if *profileID == "" {
		*profileID = cfg.Profile
	}
	if !*record && flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: scribepipe [flags] audio.wav [audio.wav ...]")
		fmt.Fprintln(os.Stderr, "       scribepipe [flags] -record")
		flag.PrintDefaults()
		os.Exit(2)
	}

	app, err := newApp(cfg, registry, *profileID, params.params, log)
	if err != nil {
		fatal("%v", err)
	}
	defer app.close()

	var buffers []*audio.Buffer
	if *record {
		buf, err := recordBuffer(cfg, log)
		if err != nil {
			fatal("recording: %v", err)
		}
		if buf != nil {
			buffers = append(buffers, buf)
		}
	}
	for _, path := range flag.Args() {
		buf, err := audio.DecodeFile(path)
		if err != nil {
			fatal("decoding %s: %v", path, err)
		}
		buffers = append(buffers, buf)
	}

	for _, buf := range buffers {
		if err := app.transcribe(buf); err != nil {
			log.Error("transcription failed", "source", buf.Source(), "error", err)
		}
	}
	app.pool.Wait()
	app.dispatch.Close()

	text := app.doc.Text()
	if *outPath != "" {
		if err := app.doc.Save(*outPath); err != nil {
			fatal("saving transcript: %v", err)
		}
		log.Info("transcript saved", "path", *outPath)
	} else if text != "" {
		fmt.Println(text)
	}

	if *reference != "" {
		data, err := os.ReadFile(*reference)
		if err != nil {
			fatal("reading reference: %v", err)
		}
		printAccuracy(transcribe.ComputeWER(string(data), text))
	}
}

// app wires the pipeline for one CLI invocation.
type app struct {
	cfg       *config.Config
	registry  *profile.Registry
	profileID string
	params    profile.Params
	log       *slog.Logger

	doc      *document.Document
	dispatch *document.SerialDispatcher
	sink     *document.Sink
	pool     *job.Pool
	store    *history.Store
	runners  []transcribe.Runner
}

func newApp(cfg *config.Config, registry *profile.Registry, profileID string, params profile.Params, log *slog.Logger) (*app, error) {
	a := &app{
		cfg:       cfg,
		registry:  registry,
		profileID: profileID,
		params:    params,
		log:       log,
		doc:       document.New(),
		dispatch:  document.NewSerialDispatcher(),
	}
	a.sink = document.NewSink(a.doc, a.dispatch, log)
	a.sink.CopyToClipboard = cfg.Clipboard

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("opening history: %w", err)
		}
		a.store = store
	}

	a.pool = job.NewPool(cfg.Workers, &barNotifier{}, &recordingSink{inner: a.sink, store: a.store, log: log}, log)
	return a, nil
}

// transcribe creates a fresh runner and job for buf and submits it.
func (a *app) transcribe(buf *audio.Buffer) error {
	runner, err := a.registry.Create(a.profileID, a.params)
	if err != nil {
		return err
	}
	a.runners = append(a.runners, runner)

	j := job.New(a.profileID, buf.Source(), a.doc.Caret())
	a.log.Info("transcribing", "source", buf.Source(), "duration", buf.Duration(),
		"estimate", runner.EstimateDuration(buf))
	if err := a.pool.Submit(j, runner, buf); err != nil {
		return err
	}
	<-j.Done()
	if j.State() == job.StateFailed {
		return j.Err()
	}
	return nil
}

func (a *app) close() {
	for _, r := range a.runners {
		if err := r.Close(); err != nil {
			a.log.Warn("closing runner", "error", err)
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}

// recordingSink forwards deliveries to the document sink and persists
// terminal jobs to history.
type recordingSink struct {
	inner *document.Sink
	store *history.Store
	log   *slog.Logger
}

func (s *recordingSink) Deliver(j *job.Job) {
	s.inner.Deliver(j)
	if s.store == nil {
		return
	}
	if err := s.store.Record(context.Background(), j); err != nil {
		s.log.Warn("recording history", "job", j.ID(), "error", err)
	}
}

// barNotifier renders job progress on a terminal progress bar. Callbacks
// arrive from worker goroutines, so access to the bar is serialized.
type barNotifier struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func (n *barNotifier) Progress(j *job.Job, fraction float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.bar == nil {
		n.bar = progressbar.NewOptions(1000,
			progressbar.OptionSetDescription("transcribing"),
			progressbar.OptionClearOnFinish())
	}
	n.bar.Set(int(fraction * 1000))
}

func (n *barNotifier) Finished(j *job.Job) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.bar != nil {
		n.bar.Finish()
		n.bar = nil
	}
}

// recordBuffer captures microphone audio until the user presses Enter or
// interrupts. On interrupt the partial capture is transcribed only when
// recording.keep_partial is set.
func recordBuffer(cfg *config.Config, log *slog.Logger) (*audio.Buffer, error) {
	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Recording.MaxSeconds)
	if err != nil {
		return nil, err
	}
	defer recorder.Close()

	if err := recorder.Start(); err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Recording (max %.0fs). Press Enter to stop.\n", cfg.Recording.MaxSeconds)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	enterCh := make(chan struct{})
	go func() {
		buf := make([]byte, 1)
		os.Stdin.Read(buf)
		close(enterCh)
	}()

	select {
	case <-enterCh:
	case sig := <-sigCh:
		if !cfg.Recording.KeepPartial {
			log.Info("recording interrupted, discarding", "signal", sig)
			recorder.Discard()
			return nil, nil
		}
		log.Info("recording interrupted, keeping partial capture", "signal", sig)
	}

	buf, truncated, err := recorder.Stop()
	if err != nil {
		return nil, err
	}
	if truncated {
		log.Warn("recording hit the maximum length", "max_seconds", cfg.Recording.MaxSeconds)
	}
	log.Info("captured audio", "duration", buf.Duration())
	return buf, nil
}

func printProfiles(registry *profile.Registry) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Name", "Parameter", "Type", "Default"})
	for _, desc := range registry.List() {
		if len(desc.Params) == 0 {
			t.AppendRow(table.Row{desc.ID, desc.DisplayName, "", "", ""})
			continue
		}
		for i, p := range desc.Params {
			id, name := "", ""
			if i == 0 {
				id, name = desc.ID, desc.DisplayName
			}
			t.AppendRow(table.Row{id, name, p.Name, p.Type, fmt.Sprintf("%v", p.Default)})
		}
		t.AppendSeparator()
	}
	t.Render()
}

func printHistory(cfg *config.Config, limit int) error {
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled in config")
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(context.Background(), limit)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"When", "Profile", "Source", "State", "Transcript"})
	for _, e := range entries {
		text := e.Transcript
		if e.Error != "" {
			text = "error: " + e.Error
		}
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		t.AppendRow(table.Row{
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			e.ProfileID, e.Source, e.State, text,
		})
	}
	t.Render()
	return nil
}

func printAccuracy(acc transcribe.Accuracy) {
	fmt.Printf("WER: %.2f%% (%d words, %d sub, %d ins, %d del)\n",
		acc.WER*100, acc.RefWords, acc.Substitutions, acc.Insertions, acc.Deletions)
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	return config.Default(), nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "scribepipe: "+format+"\n", args...)
	os.Exit(1)
}
