package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/kestra-io/kestrafs/internal/logging"
	"github.com/kestra-io/kestrafs/internal/metrics"
	"github.com/kestra-io/kestrafs/pkg/prompt"
	"github.com/kestra-io/kestrafs/pkg/store"
)

// Prompt labels shown during credential recovery.
const (
	usernamePrompt = "Basic auth username (ESC to login with JWT Token)"
	passwordPrompt = "Basic auth password"
	tokenPrompt    = "JWT Token (copy it when logged in, under logout button)"
)

type recoveryState int

const (
	stateAwaitingUsername recoveryState = iota
	stateAwaitingPassword
	stateAwaitingToken
	stateRecovered
	stateFailed
)

// recovery is one credential recovery cycle for a rejected request. Each
// state issues at most one replay, so a cycle replays the request at most
// twice: once with basic auth and once with a token.
type recovery struct {
	c   *Client
	req *Request

	state recoveryState
	creds credentials
	resp  *Response
	err   error
}

// recover runs a recovery cycle for req, which was rejected while sent with
// staleToken. Concurrent cycles are serialized so the user is never asked for
// two sets of credentials at once. A caller that waited on another cycle first
// replays with whatever token that cycle stored.
func (c *Client) recover(ctx context.Context, req *Request, staleToken string) (*Response, error) {
	c.recoverMu.Lock()
	defer c.recoverMu.Unlock()

	if token, _ := c.secrets.Get(store.TokenKey); token != "" && token != staleToken {
		resp, err := c.do(ctx, req, credentials{token: token})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized {
			logging.Debug("request replayed with refreshed token", logging.String("url", req.URL))
			return resp, nil
		}
	}

	r := &recovery{c: c, req: req, state: stateAwaitingUsername}
	resp, err := r.run(ctx)

	switch {
	case err == nil:
		metrics.RecordAuthRecovery("recovered")
	case errors.Is(err, ErrWrongCredentials):
		metrics.RecordAuthRecovery("rejected")
	default:
		metrics.RecordAuthRecovery("cancelled")
	}
	return resp, err
}

func (r *recovery) run(ctx context.Context) (*Response, error) {
	for {
		switch r.state {
		case stateAwaitingUsername:
			r.state = r.askUsername(ctx)
		case stateAwaitingPassword:
			r.state = r.askPassword(ctx)
		case stateAwaitingToken:
			r.state = r.askToken(ctx)
		case stateRecovered:
			return r.resp, nil
		default:
			return nil, r.err
		}
	}
}

func (r *recovery) fail(err error) recoveryState {
	r.err = err
	return stateFailed
}

func (r *recovery) askUsername(ctx context.Context) recoveryState {
	remembered, err := r.c.secrets.Get(store.UsernameKey)
	if err != nil {
		logging.Warn("read stored username", logging.Err(err))
	}

	username, err := r.c.prompter.Input(ctx, prompt.Options{Prompt: usernamePrompt, Value: remembered})
	if errors.Is(err, prompt.ErrCancelled) || (err == nil && username == "") {
		return stateAwaitingToken
	}
	if err != nil {
		return r.fail(err)
	}

	r.creds.username = username
	if err := r.c.secrets.Set(store.UsernameKey, username); err != nil {
		logging.Warn("store username", logging.Err(err))
	}
	return stateAwaitingPassword
}

func (r *recovery) askPassword(ctx context.Context) recoveryState {
	password, err := r.c.prompter.Input(ctx, prompt.Options{Prompt: passwordPrompt, Password: true})
	if errors.Is(err, prompt.ErrCancelled) || (err == nil && password == "") {
		return r.fail(ErrPasswordRequired)
	}
	if err != nil {
		return r.fail(err)
	}
	r.creds.password = password

	resp, err := r.c.do(ctx, r.req, r.creds)
	if err != nil {
		return r.fail(err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return stateAwaitingToken
	}
	r.resp = resp
	return stateRecovered
}

func (r *recovery) askToken(ctx context.Context) recoveryState {
	token, err := r.c.prompter.Input(ctx, prompt.Options{Prompt: tokenPrompt, Password: true})
	if errors.Is(err, prompt.ErrCancelled) || (err == nil && token == "") {
		return r.fail(ErrTokenRequired)
	}
	if err != nil {
		return r.fail(err)
	}
	r.creds.token = token

	resp, err := r.c.do(ctx, r.req, r.creds)
	if err != nil {
		return r.fail(err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return r.fail(ErrWrongCredentials)
	}

	if err := r.c.secrets.Set(store.TokenKey, token); err != nil {
		logging.Warn("store token", logging.Err(err))
	}
	r.resp = resp
	return stateRecovered
}
