// Package handlers exposes the read API over the restaurant store, the
// similarity endpoint and the admin pipeline surface.
package handlers

import (
	"sync"

	"github.com/moritzg809/eateateat/config"
	"github.com/moritzg809/eateateat/pipeline"
	"github.com/moritzg809/eateateat/recommend"

	"gorm.io/gorm"
)

// API bundles the long-lived service instances the handlers work with.
type API struct {
	DB   *gorm.DB
	Rec  *recommend.Recommender
	Pipe *pipeline.Pipeline
	Cfg  *config.Config

	// pipelineMu makes the admin-triggered pipeline single-flight.
	pipelineMu sync.Mutex
}

func NewAPI(db *gorm.DB, rec *recommend.Recommender, pipe *pipeline.Pipeline, cfg *config.Config) *API {
	return &API{DB: db, Rec: rec, Pipe: pipe, Cfg: cfg}
}
