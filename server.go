package main

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	mw "vanish.io/linkcore/common/middleware"
	pe "vanish.io/linkcore/errors"
	md "vanish.io/linkcore/models"
	svc "vanish.io/linkcore/service"
)

// linkOps is the slice of the link service the http layer consumes
type linkOps interface {
	Create(ctx context.Context, req svc.CreateRequest) (string, *pe.Err)
	Retrieve(ctx context.Context, id, password string) (*md.LinkPayload, *pe.Err)
}

// a thin web server fronting the link service; all business decisions live below it
type linkServer struct {
	LS     linkOps
	Router *httprouter.Router
}

func (s *linkServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// set up routes
func (s *linkServer) SetupMux() {
	r := httprouter.New()
	r.POST("/api/links", mw.Chain(s.HandleTaskCreateLink(), mw.CORS(), mw.PanicRecoverer()))
	r.GET("/api/links/:id", mw.Chain(s.HandleTaskGetLink(), mw.CORS(), mw.PanicRecoverer()))
	r.GET("/health", s.HandleMetaHealth())
	s.Router = r
}
