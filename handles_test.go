package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	pe "vanish.io/linkcore/errors"
	md "vanish.io/linkcore/models"
	svc "vanish.io/linkcore/service"
)

const testLinkID = "0ujsszwN8NRY24YaXiTIE2VWDTS"

type mockLinkOps struct {
	mock.Mock
}

func (m *mockLinkOps) Create(ctx context.Context, req svc.CreateRequest) (string, *pe.Err) {
	args := m.Called(ctx, req)
	return args.String(0), args.Get(1).(*pe.Err)
}

func (m *mockLinkOps) Retrieve(ctx context.Context, id, password string) (*md.LinkPayload, *pe.Err) {
	args := m.Called(ctx, id, password)
	var p *md.LinkPayload
	if v := args.Get(0); v != nil {
		p = v.(*md.LinkPayload)
	}
	return p, args.Get(1).(*pe.Err)
}

func newTestServer(ops linkOps) *linkServer {
	s := &linkServer{LS: ops}
	s.SetupMux()
	return s
}

func decodeErrBody(t *testing.T, body string) errResponse {
	t.Helper()
	var e errResponse
	require.NoError(t, json.Unmarshal([]byte(body), &e))
	return e
}

func TestHandleTaskCreateLink(t *testing.T) {
	tcs := []struct {
		name        string
		body        string
		createID    string
		createErr   *pe.Err
		callsCreate bool
		expCode     int
		expErrCode  pe.ErrCode
	}{
		{
			name:        "HappyCase",
			body:        `{"content":"secret","type":"text","options":{"expiry":"1h","maxViews":1,"oneTime":true}}`,
			createID:    testLinkID,
			createErr:   nil,
			callsCreate: true,
			expCode:     http.StatusCreated,
		},
		{
			name:    "MalformedBody",
			body:    `{"content":`,
			expCode: http.StatusBadRequest,
		},
		{
			name:        "UnrecognizedExpiry",
			body:        `{"content":"secret","type":"text","options":{"expiry":"2h"}}`,
			createErr:   pe.NewBadInput(`unrecognized expiry code "2h"`),
			callsCreate: true,
			expCode:     http.StatusBadRequest,
			expErrCode:  pe.ErrCodeBadInput,
		},
		{
			name:        "StorageDown",
			body:        `{"content":"secret","type":"text","options":{"expiry":"1h"}}`,
			createErr:   pe.NewServiceFailure("error saving link"),
			callsCreate: true,
			expCode:     http.StatusInternalServerError,
			expErrCode:  pe.ErrCodeServiceFailure,
		},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			ops := &mockLinkOps{}
			if c.callsCreate {
				ops.On("Create", mock.Anything, mock.Anything).Return(c.createID, c.createErr)
			}
			s := newTestServer(ops)
			wrec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(c.body))
			s.ServeHTTP(wrec, req)
			ops.AssertExpectations(t)
			assert.Equal(t, c.expCode, wrec.Code, "unexpected status code")
			if c.expCode == http.StatusCreated {
				var resp createLinkResponse
				require.NoError(t, json.Unmarshal(wrec.Body.Bytes(), &resp))
				assert.Equal(t, testLinkID, resp.ID)
				return
			}
			if c.expErrCode != "" {
				assert.Equal(t, c.expErrCode, decodeErrBody(t, wrec.Body.String()).Error.Code)
			}
		})
	}
}

func TestHandleTaskCreateLink_ForwardsRequestFields(t *testing.T) {
	ops := &mockLinkOps{}
	var got svc.CreateRequest
	ops.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(svc.CreateRequest)
	}).Return(testLinkID, (*pe.Err)(nil))
	s := newTestServer(ops)
	body := `{"content":"aGVsbG8=","type":"file","options":{"expiry":"24h","maxViews":3,"encrypt":true,"downloadOnly":true},"fileMeta":{"name":"a.bin","size":5,"mime":"application/octet-stream"}}`
	wrec := httptest.NewRecorder()
	s.ServeHTTP(wrec, httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, wrec.Code)
	assert.Equal(t, "aGVsbG8=", got.Content)
	assert.Equal(t, md.ContentTypeFile, got.Type)
	assert.Equal(t, "24h", got.Options.Expiry)
	assert.Equal(t, int64(3), got.Options.MaxViews)
	assert.True(t, got.Options.Encrypt)
	assert.True(t, got.Options.DownloadOnly)
	require.NotNil(t, got.FileMeta)
	assert.Equal(t, "a.bin", got.FileMeta.Name)
}

func TestHandleTaskGetLink(t *testing.T) {
	now := time.Now()
	payload := &md.LinkPayload{
		ID:           testLinkID,
		Content:      "secret",
		Type:         md.ContentTypeText,
		ExpiresAt:    now.Add(time.Hour),
		MaxViews:     1,
		CurrentViews: 1,
		IsOneTime:    true,
	}
	tcs := []struct {
		name          string
		linkID        string
		query         string
		retErr        *pe.Err
		callsRetrieve bool
		expCode       int
		expErrCode    pe.ErrCode
	}{
		{
			name:          "HappyCase",
			linkID:        testLinkID,
			callsRetrieve: true,
			expCode:       http.StatusOK,
		},
		{
			// a syntactically invalid id can't exist; reject before touching stores
			name:       "InvalidIDSyntax",
			linkID:     "not-a-ksuid!",
			expCode:    http.StatusNotFound,
			expErrCode: pe.ErrCodeNotFound,
		},
		{
			name:          "UnknownID",
			linkID:        testLinkID,
			retErr:        pe.NewNotFound("link not found"),
			callsRetrieve: true,
			expCode:       http.StatusNotFound,
			expErrCode:    pe.ErrCodeNotFound,
		},
		{
			name:          "ConsumedLink",
			linkID:        testLinkID,
			retErr:        pe.NewGone("one-time link already consumed"),
			callsRetrieve: true,
			expCode:       http.StatusGone,
			expErrCode:    pe.ErrCodeGone,
		},
		{
			name:          "WrongPassword",
			linkID:        testLinkID,
			query:         "?password=wrong",
			retErr:        pe.NewForbidden("password missing or incorrect"),
			callsRetrieve: true,
			expCode:       http.StatusForbidden,
			expErrCode:    pe.ErrCodeForbidden,
		},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			ops := &mockLinkOps{}
			if c.callsRetrieve {
				password := ""
				if c.query != "" {
					password = strings.TrimPrefix(c.query, "?password=")
				}
				var ret *md.LinkPayload
				if c.retErr == nil {
					ret = payload
				}
				ops.On("Retrieve", mock.Anything, c.linkID, password).Return(ret, c.retErr)
			}
			s := newTestServer(ops)
			wrec := httptest.NewRecorder()
			s.ServeHTTP(wrec, httptest.NewRequest(http.MethodGet, "/api/links/"+c.linkID+c.query, nil))
			ops.AssertExpectations(t)
			assert.Equal(t, c.expCode, wrec.Code, "unexpected status code")
			if c.expCode == http.StatusOK {
				var got md.LinkPayload
				require.NoError(t, json.Unmarshal(wrec.Body.Bytes(), &got))
				assert.Equal(t, payload.Content, got.Content)
				assert.Equal(t, payload.CurrentViews, got.CurrentViews)
				return
			}
			if c.expErrCode != "" {
				assert.Equal(t, c.expErrCode, decodeErrBody(t, wrec.Body.String()).Error.Code)
			}
		})
	}
}

func TestHandleMetaHealth(t *testing.T) {
	s := newTestServer(&mockLinkOps{})
	wrec := httptest.NewRecorder()
	s.ServeHTTP(wrec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, wrec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(wrec.Body.Bytes(), &resp))
	assert.Equal(t, "linkcore online", resp.Status)
}
