package main

import (
	"log"

	"github.com/BetterCallFirewall/Phishtrap/internal/config"
	"github.com/BetterCallFirewall/Phishtrap/internal/extractor"
	"github.com/BetterCallFirewall/Phishtrap/internal/model"
	"github.com/BetterCallFirewall/Phishtrap/internal/scoring"
	"github.com/BetterCallFirewall/Phishtrap/internal/storage"
	"github.com/BetterCallFirewall/Phishtrap/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// модель загружается один раз и дальше только читается
	m, err := model.LoadArtifact(cfg.Model.ArtifactPath)
	if err != nil {
		log.Fatalf("Failed to load model artifact: %v", err)
	}
	log.Printf("🧠 Model loaded: %s", m.Info())

	scorer := scoring.NewScorer(extractor.NewRunner(cfg.Extractor), m)
	server := web.NewServer(cfg, scorer, storage.NewMemoryStorage())

	log.Printf("🚀 Phishtrap API listening on %s", cfg.Web.ListenAddr)
	log.Fatal(server.Start())
}
