package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"polisync/agent"
	"polisync/claim"
	"polisync/customer"
	"polisync/db"
	"polisync/docstore"
	"polisync/dualwrite"
	"polisync/graph"
	"polisync/httpapi"
	"polisync/policy"
	"polisync/reconcile"
	"polisync/vehicle"
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

	docs := docstore.NewStore(pool)
	if err := docs.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	graphStore, err := graph.Connect(os.Getenv("NEO4J_URI"), os.Getenv("NEO4J_USER"), os.Getenv("NEO4J_PASSWORD"))
	if err != nil {
		log.Fatal().Err(err).Msg("connect graph store")
	}
	defer graphStore.Close(ctx)

	coordinator := dualwrite.NewCoordinator(graphStore, docs, log)

	api := &httpapi.API{
		Customers:  customer.NewService(docs, coordinator),
		Policies:   policy.NewService(docs, coordinator),
		Claims:     claim.NewService(docs, coordinator),
		Agents:     agent.NewRepository(docs),
		Vehicles:   vehicle.NewRepository(docs),
		Reconciler: reconcile.NewJob(docs, reconcile.GraphAdapter{Store: graphStore}, log),
		Graph:      graphStore,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Info().Str("port", port).Msg("api listening")
	if err := http.ListenAndServe(":"+port, api.Handler()); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}
