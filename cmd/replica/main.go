package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/replica/internal/config"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/motion"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/runtime"
	"github.com/zeusync/replica/internal/core/spatial"
	"github.com/zeusync/replica/internal/core/tween"
	"github.com/zeusync/replica/internal/injector"
	"github.com/zeusync/replica/internal/viewer"
)

var emotes = map[rune]entity.ActionType{
	'1': entity.Wave,
	'2': entity.Dance,
	'3': entity.Clap,
	'4': entity.Jump,
	'5': entity.Sit,
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	headless := flag.Bool("headless", false, "run without the terminal view")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Println("Error loading config:", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *headless); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, headless bool) error {
	client, cleanup, err := injector.InitializeClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := client.Logger
	rt := client.Runtime
	loop := client.Loop
	active := entity.ID(cfg.Entity)
	loop.SetActive(active)

	rt.Audio().SetContext(rt.Audio().OutputClock())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.Link.Run(ctx, func(data []byte) {
			if err := rt.ApplySerializedDiff(data, loop.Active()); err != nil {
				logger.Warn("dropping malformed diff", log.Error(err))
			}
		})
	})
	g.Go(func() error {
		return rt.Throttle().Run(ctx)
	})
	g.Go(func() error {
		return pumpAudio(ctx, rt, cfg)
	})

	if !headless {
		term, err := newTerminal(rt, loop, cancel, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return term.Run(ctx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return loop.Run(ctx)
	})

	logger.Info("client started",
		log.String("transport", cfg.Network.Transport),
		log.String("address", cfg.Network.Address),
		log.Uint64("entity", cfg.Entity),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("client stopped", log.Int64("ticks", loop.Tick()))
	return nil
}

func newTerminal(rt *runtime.Runtime, loop *runtime.Loop, quit func(), logger log.Log) (*viewer.Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	camera := func() (spatial.Pose, bool) {
		return rt.Pose(loop.Active())
	}
	term := viewer.NewTerminal(screen, rt.Graph(), rt.Input(), camera, viewer.DefaultOptions(), logger)
	term.OnQuit(quit)
	for key, action := range emotes {
		term.Bind(key, func() {
			rt.Act(entity.Action{Type: action, State: 1})
		})
	}
	term.Bind('f', func() {
		rt.Do(func() { flash(rt, loop.Active()) })
	})
	rt.OnTouched(func(int64, *motion.Touched) {
		term.Draw()
	})
	return term, nil
}

// flash dims the entity and fades it back in.
func flash(rt *runtime.Runtime, id entity.ID) {
	node, ok := rt.Reconciler().Node(id)
	if !ok {
		return
	}
	rt.Graph().SetOpacity(node, 0.2)
	opaque := 1.0
	rt.Tweens().Tween(node, tween.Target{Opacity: &opaque}, 0.5)
}

// pumpAudio pulls the mixed output in real time so the audio clock advances
// without a sound device.
func pumpAudio(ctx context.Context, rt *runtime.Runtime, cfg *config.Config) error {
	const period = 10 * time.Millisecond
	env := rt.Audio()
	rate := cfg.Runtime().Audio.SampleRate
	buf := make([][2]float64, rate.N(period))

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			env.Stream(buf)
		}
	}
}
