package main

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/segmentio/ksuid"
	"github.com/spf13/viper"

	"vanish.io/linkcore/common/logging"
	cst "vanish.io/linkcore/constants"
	pe "vanish.io/linkcore/errors"
	md "vanish.io/linkcore/models"
	svc "vanish.io/linkcore/service"
)

type createLinkRequest struct {
	Content  string           `json:"content"`
	Type     md.ContentType   `json:"type"`
	Options  md.CreateOptions `json:"options"`
	FileMeta *md.FileMeta     `json:"fileMeta,omitempty"`
}

type createLinkResponse struct {
	ID string `json:"id"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errResponse struct {
	Error errDetail `json:"error"`
}

type errDetail struct {
	Code    pe.ErrCode `json:"code"`
	Message string     `json:"message"`
}

// the original deployment accepted bodies up to 50 MiB
const defaultReqBodySizeMaxByte = 50 * 1024 * 1024

func (s *linkServer) HandleTaskCreateLink() httprouter.Handle {
	clog := logging.WithFuncName().WithField("httpMethod", http.MethodPost)
	maxReqBodySize := viper.GetInt64(cst.EnvReqBodySizeMaxByte)
	if maxReqBodySize <= 0 {
		maxReqBodySize = defaultReqBodySizeMaxByte
	}
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		r.Body = http.MaxBytesReader(w, r.Body, maxReqBodySize)
		var req createLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			clog.WithError(err).Error("error decoding create request body")
			respErr(w, pe.NewBadInput("malformed request body").WithCause(err))
			return
		}
		id, err := s.LS.Create(r.Context(), svc.CreateRequest{
			Content:  req.Content,
			Type:     req.Type,
			Options:  req.Options,
			FileMeta: req.FileMeta,
		})
		if err != nil {
			clog.WithError(err).Error("error creating link")
			respErr(w, err)
			return
		}
		respJSON(w, http.StatusCreated, createLinkResponse{ID: id})
	}
}

func (s *linkServer) HandleTaskGetLink() httprouter.Handle {
	clog := logging.WithFuncName().WithField("httpMethod", http.MethodGet)
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		linkID := ps.ByName("id")
		plog := clog.WithField("linkID", linkID)
		// ids are ksuids; anything else can't exist, so don't bother the stores
		if _, err := ksuid.Parse(linkID); err != nil {
			plog.WithError(err).Error("got invalid link ID")
			respErr(w, pe.NewNotFound("link not found"))
			return
		}
		p, err := s.LS.Retrieve(r.Context(), linkID, r.URL.Query().Get("password"))
		if err != nil {
			plog.WithError(err).Error("error retrieving link")
			respErr(w, err)
			return
		}
		respJSON(w, http.StatusOK, p)
	}
}

func (s *linkServer) HandleMetaHealth() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		respJSON(w, http.StatusOK, healthResponse{Status: "linkcore online"})
	}
}

func respJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.WithFuncName().WithError(err).Error("error encoding response body")
	}
}

func respErr(w http.ResponseWriter, err *pe.Err) {
	respJSON(w, err.StatusCode(), errResponse{Error: errDetail{Code: err.Code, Message: err.Error()}})
}
