// Rebuilds the graph projection from the primary store. Run on a schedule or
// by hand; safe to re-run in full at any time.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"polisync/db"
	"polisync/docstore"
	"polisync/graph"
	"polisync/reconcile"
)

func main() {
	_ = godotenv.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx := context.Background()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap database pool")
	}
	defer pool.Close()
	log.Info().Msg("primary store ok")

	graphStore, err := graph.Connect(os.Getenv("NEO4J_URI"), os.Getenv("NEO4J_USER"), os.Getenv("NEO4J_PASSWORD"))
	if err != nil {
		log.Fatal().Err(err).Msg("connect graph store")
	}
	defer graphStore.Close(ctx)

	if err := graphStore.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("graph store unreachable")
	}
	log.Info().Msg("graph store ok")

	job := reconcile.NewJob(docstore.NewStore(pool), reconcile.GraphAdapter{Store: graphStore}, log)
	sum, err := job.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("reconciliation failed")
	}

	log.Info().Int("processed", sum.Processed).Int("skipped", sum.Skipped).Msg("done")
}
