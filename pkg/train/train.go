// Package train implements genetic training of evaluation weights.
package train

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"github.com/herohde/stax/pkg/eval"
	"github.com/herohde/stax/pkg/game"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/contextx"
	"go.uber.org/atomic"
)

// Config holds training parameters.
type Config struct {
	// Generations is the number of generations to evolve.
	Generations int
	// Population is the number of weight vectors per generation.
	Population int
	// GamesPerEval is the number of games played to estimate fitness.
	GamesPerEval int
	// MutationRate is the per-gene mutation probability in [0;1].
	MutationRate float64
	// Seed makes runs reproducible. All individuals of a generation play
	// the same piece sequences for a fair comparison.
	Seed int64
	// MaxPieces caps each evaluation game. If zero, games run to top-out.
	MaxPieces int
	// Lookahead enables one-piece lookahead during evaluation games.
	// Stronger but slower.
	Lookahead bool
}

func (c Config) validate() error {
	if c.Generations <= 0 {
		return fmt.Errorf("invalid generations: %v", c.Generations)
	}
	if c.Population < 2 {
		return fmt.Errorf("invalid population: %v", c.Population)
	}
	if c.GamesPerEval <= 0 {
		return fmt.Errorf("invalid games per eval: %v", c.GamesPerEval)
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("invalid mutation rate: %v", c.MutationRate)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("{gen=%v, pop=%v, games=%v, mutation=%v, seed=%v}", c.Generations, c.Population, c.GamesPerEval, c.MutationRate, c.Seed)
}

const (
	tournamentSize = 3
	mutationSigma  = 0.2
)

type individual struct {
	weights eval.Weights
	fitness float64
}

// Trainer evolves evaluation weights with a genetic algorithm: fitness is the
// mean number of lines cleared over a fixed set of seeded games, selection is
// by tournament, and reproduction uses uniform crossover with gaussian
// mutation. Individuals are evaluated in parallel.
type Trainer struct {
	cfg   Config
	store *Store
	rand  *rand.Rand

	games atomic.Uint64
}

// Option is a trainer creation option.
type Option func(*Trainer)

// WithStore configures the trainer to checkpoint each generation to the
// given store and to resume from its latest checkpoint.
func WithStore(s *Store) Option {
	return func(t *Trainer) {
		t.store = s
	}
}

func New(cfg Config, opts ...Option) (*Trainer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	t := &Trainer{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)),
	}
	for _, fn := range opts {
		fn(t)
	}
	return t, nil
}

// Run evolves the population and returns the best weight vector found. If
// the context is cancelled, the best vector so far is returned.
func (t *Trainer) Run(ctx context.Context) (eval.Weights, error) {
	logw.Infof(ctx, "Training %v on %v workers", t.cfg, runtime.NumCPU())

	start := 0
	pop := t.seedPopulation(ctx)
	best := pop[0]

	if t.store != nil {
		if cp, ok, err := t.store.Latest(); err != nil {
			return eval.Weights{}, err
		} else if ok {
			logw.Infof(ctx, "Resuming from generation %v: fitness=%.2f", cp.Generation, cp.Fitness)
			start = cp.Generation + 1
			pop[0] = individual{weights: cp.Weights}
		}
	}

	for gen := start; gen < start+t.cfg.Generations; gen++ {
		if contextx.IsCancelled(ctx) {
			logw.Warningf(ctx, "Training cancelled at generation %v", gen)
			break
		}

		t.evaluate(ctx, pop, gen)
		sort.SliceStable(pop, func(i, j int) bool {
			return pop[i].fitness > pop[j].fitness
		})
		best = pop[0]

		logw.Infof(ctx, "Generation %v: fitness=%.2f, games=%v, weights=%v", gen, best.fitness, t.games.Load(), best.weights)

		if t.store != nil {
			cp := Checkpoint{
				Generation: gen,
				Weights:    best.weights,
				Fitness:    best.fitness,
				Games:      t.games.Load(),
			}
			if err := t.store.SaveCheckpoint(cp); err != nil {
				return best.weights, fmt.Errorf("checkpoint failed: %v", err)
			}
		}

		if gen+1 < start+t.cfg.Generations {
			pop = t.breed(pop)
		}
	}
	return best.weights, nil
}

func (t *Trainer) seedPopulation(ctx context.Context) []individual {
	pop := make([]individual, t.cfg.Population)
	for i := range pop {
		for f := range pop[i].weights {
			pop[i].weights[f] = t.rand.Float64()*2 - 1
		}
	}
	// Keep one well-known vector in the initial mix.
	pop[len(pop)-1] = individual{weights: eval.DefaultWeights}
	return pop
}

// evaluate plays the fitness games for every individual, in parallel. All
// individuals of a generation play the same seeds.
func (t *Trainer) evaluate(ctx context.Context, pop []individual, gen int) {
	base := t.cfg.Seed + int64(gen)*1000003

	work := make(chan int, len(pop))
	for i := range pop {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < runtime.NumCPU(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				pop[i].fitness = t.fitness(ctx, pop[i].weights, base)
			}
		}()
	}
	wg.Wait()
}

func (t *Trainer) fitness(ctx context.Context, w eval.Weights, base int64) float64 {
	lines := 0
	for j := 0; j < t.cfg.GamesPerEval; j++ {
		opts := []game.Option{
			game.WithSeed(base + int64(j)),
			game.WithWeights(w),
		}
		if t.cfg.Lookahead {
			opts = append(opts, game.WithLookahead())
		}

		g, err := game.New(ctx, opts...)
		if err != nil {
			logw.Errorf(ctx, "Evaluation game failed: %v", err)
			continue
		}
		lines += g.Play(ctx, t.cfg.MaxPieces).Lines
		t.games.Inc()

		if contextx.IsCancelled(ctx) {
			break
		}
	}
	return float64(lines) / float64(t.cfg.GamesPerEval)
}

// breed produces the next generation: the best tenth survives unchanged,
// the rest are bred by tournament selection, uniform crossover and gaussian
// mutation.
func (t *Trainer) breed(pop []individual) []individual {
	elite := len(pop) / 10
	if elite < 1 {
		elite = 1
	}

	next := make([]individual, 0, len(pop))
	next = append(next, pop[:elite]...)

	for len(next) < len(pop) {
		a := t.selectParent(pop)
		b := t.selectParent(pop)

		var child individual
		for f := range child.weights {
			if t.rand.Intn(2) == 0 {
				child.weights[f] = a.weights[f]
			} else {
				child.weights[f] = b.weights[f]
			}
			if t.rand.Float64() < t.cfg.MutationRate {
				child.weights[f] += t.rand.NormFloat64() * mutationSigma
			}
		}
		next = append(next, child)
	}
	return next
}

// selectParent returns the fittest of a random tournament. Assumes pop is
// sorted by descending fitness.
func (t *Trainer) selectParent(pop []individual) individual {
	best := len(pop)
	for i := 0; i < tournamentSize; i++ {
		if c := t.rand.Intn(len(pop)); c < best {
			best = c
		}
	}
	return pop[best]
}
