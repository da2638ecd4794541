// stax is a Tetris-playing engine. It searches piece placements with a
// weighted feature evaluation and can train its own weights with a genetic
// algorithm.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/herohde/stax/pkg/eval"
	"github.com/herohde/stax/pkg/game"
	"github.com/herohde/stax/pkg/grid"
	"github.com/herohde/stax/pkg/search"
	"github.com/herohde/stax/pkg/train"
	"github.com/herohde/stax/pkg/tui"
	"github.com/seekerror/logw"
)

var (
	generations = flag.Int("g", 20, "Training generations")
	population  = flag.Int("p", 50, "Training population size")
	games       = flag.Int("e", 4, "Games per fitness evaluation")
	mutation    = flag.Float64("m", 0.1, "Mutation rate")
	seed        = flag.Int64("s", 0, "Random seed (zero for time-derived)")
	weightsFile = flag.String("w", "", "Weights file: one float per line, in feature order")
	pieces      = flag.Int("n", 0, "Piece limit per game (zero for none)")
	hash        = flag.Uint64("hash", 0, "Transposition table size in MB (zero to disable)")
	lookahead   = flag.Bool("lookahead", false, "Enable one-piece lookahead")
	doTrain     = flag.Bool("train", false, "Train weights instead of playing")
	checkpoint  = flag.String("checkpoint", "", "Training checkpoint directory (optional)")
	watch       = flag.Bool("tui", false, "Watch the game in the terminal")
	delay       = flag.Duration("delay", 40*time.Millisecond, "Terminal playback delay per piece")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: stax [options]

STAX is a Tetris-playing engine: it picks each placement by a one-ply search
(with optional one-piece lookahead) over a weighted feature evaluation, and
can train the weights with a genetic algorithm.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	ctx := context.Background()

	if *seed == 0 {
		*seed = grid.EntropySeed()
	}

	weights := eval.DefaultWeights
	if *weightsFile != "" && !*doTrain {
		w, err := eval.LoadWeights(*weightsFile)
		if err != nil {
			logw.Exitf(ctx, "Invalid weights: %v", err)
		}
		weights = w
	}

	if *doTrain {
		runTraining(ctx)
		return
	}

	opts := []game.Option{
		game.WithSeed(*seed),
		game.WithWeights(weights),
	}
	if *lookahead {
		opts = append(opts, game.WithLookahead())
	}
	if *hash > 0 {
		opts = append(opts, game.WithTable(search.NewTranspositionTable(ctx, *hash<<20)))
	}

	g, err := game.New(ctx, opts...)
	if err != nil {
		logw.Exitf(ctx, "Invalid game: %v", err)
	}
	logw.Infof(ctx, "%v playing, seed=%v", g.Name(), *seed)

	if *watch {
		if err := tui.Run(ctx, g, *delay); err != nil {
			logw.Exitf(ctx, "Terminal failed: %v", err)
		}
		return
	}

	stats := g.Play(ctx, *pieces)
	fmt.Println(stats)
}

func runTraining(ctx context.Context) {
	cfg := train.Config{
		Generations:  *generations,
		Population:   *population,
		GamesPerEval: *games,
		MutationRate: *mutation,
		Seed:         *seed,
		MaxPieces:    *pieces,
		Lookahead:    *lookahead,
	}

	var opts []train.Option
	if *checkpoint != "" {
		store, err := train.OpenStore(*checkpoint)
		if err != nil {
			logw.Exitf(ctx, "Invalid checkpoint store: %v", err)
		}
		defer store.Close()
		opts = append(opts, train.WithStore(store))
	}

	t, err := train.New(cfg, opts...)
	if err != nil {
		flag.Usage()
		logw.Exitf(ctx, "Invalid training config: %v", err)
	}

	weights, err := t.Run(ctx)
	if err != nil {
		logw.Exitf(ctx, "Training failed: %v", err)
	}

	if *weightsFile != "" {
		if err := eval.SaveWeights(*weightsFile, weights); err != nil {
			logw.Exitf(ctx, "Failed to save weights: %v", err)
		}
		logw.Infof(ctx, "Saved weights to %v", *weightsFile)
	}
	fmt.Println(weights)
}
