// Profiling:
//
//	go build ./cmd/siloprofile
//	./siloprofile
//	go tool pprof -http=":8000" -nodefraction=0.001 ./siloprofile cpu.pprof
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/felixge/fgprof"
	"github.com/pkg/profile"

	"github.com/siloecs/silo"
)

type position struct {
	X, Y float64
}

type velocity struct {
	X, Y float64
}

func main() {
	entities := 50000
	ticks := 500

	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	defer p.Stop()

	stopFgprof := startFgprof()
	defer stopFgprof()

	run(entities, ticks)
}

// startFgprof serves fgprof's on- and off-CPU wall-clock profile alongside pprof's
// CPU profile; fgprof catches time spent blocked on the scheduler's
// condition variable that a CPU profile alone would miss.
func startFgprof() func() {
	mux := http.NewServeMux()
	mux.Handle("/debug/fgprof", fgprof.Handler())
	srv := &http.Server{Addr: "localhost:6971", Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return func() {
		_ = srv.Close()
	}
}

func run(numEntities, numTicks int) {
	rt, err := silo.NewRuntime(silo.RuntimeConfig{Workers: 4, MetricsEnabled: false})
	if err != nil {
		os.Exit(1)
	}

	pos := silo.FactoryNewComponent[position]()
	vel := silo.FactoryNewComponent[velocity]()

	if _, err := rt.Storage().NewEntities(numEntities, pos, vel); err != nil {
		os.Exit(1)
	}

	if _, err := rt.RegisterAction("physics"); err != nil {
		os.Exit(1)
	}

	_, err = rt.RegisterSystem("integrate", silo.AccessSignature{
		Reads:  []silo.Component{vel},
		Writes: []silo.Component{pos},
	}, "physics", nil, func(ctx silo.SystemContext) error {
		query := ctx.Query.And(pos, vel)
		cursor := silo.Factory.NewCursor(query, ctx.Storage)
		for range cursor.Next() {
			p := pos.GetFromCursor(cursor)
			v := vel.GetFromCursor(cursor)
			p.X += v.X
			p.Y += v.Y
		}
		return nil
	})
	if err != nil {
		os.Exit(1)
	}

	ctx := context.Background()
	for i := 0; i < numTicks; i++ {
		if _, err := rt.Tick(ctx); err != nil {
			os.Exit(1)
		}
	}
}
