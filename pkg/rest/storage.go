// Package rest talks to a redis-compatible store over its HTTP REST API
// (Upstash / Vercel KV style). Each command is posted as a JSON array and the
// reply comes back as {"result": ...} or {"error": "..."}.
package rest

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// maxReplySize caps how much of a store reply is read.
const maxReplySize = 1 << 20

var json = jsoniter.Config{
	EscapeHTML:             true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// Options tunes the HTTP client used by RemoteStorage.
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMax time.Duration
}

type reply struct {
	Result interface{} `json:"result"`
	Error  string      `json:"error"`
}

// RemoteStorage keeps the counter in a REST-fronted redis store.
//
// Increments go through a client that never retries: a lost reply does not
// mean the store skipped the command, and sending it again would count twice.
type RemoteStorage struct {
	url    string
	token  string
	client *retryablehttp.Client
	once   *retryablehttp.Client
	logger *logrus.Logger
}

func NewRemoteStorage(url, token string, opts Options, logger *logrus.Logger) *RemoteStorage {
	return &RemoteStorage{
		url:    strings.TrimRight(url, "/"),
		token:  token,
		client: newClient(opts, opts.RetryMax, logger),
		once:   newClient(opts, 0, logger),
		logger: logger,
	}
}

func newClient(opts Options, retryMax int, logger *logrus.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = leveledLogger{logger}
	client.RetryMax = retryMax
	client.RetryWaitMin = 50 * time.Millisecond
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
	}

	return client
}

func (s *RemoteStorage) Exists(ctx context.Context, key string) (bool, error) {
	res, err := s.do(ctx, s.client, "EXISTS", key)
	if err != nil {
		return false, err
	}

	n, ok := res.(interface{ Int64() (int64, error) })
	if !ok {
		return false, errors.Errorf("unexpected exists reply %v", res)
	}
	count, err := n.Int64()
	if err != nil {
		return false, errors.Wrap(err, "unexpected exists reply")
	}

	return count > 0, nil
}

func (s *RemoteStorage) Set(ctx context.Context, key string, value int64) error {
	_, err := s.do(ctx, s.client, "SET", key, value)
	return err
}

// SetNX replies "OK" when the value was written and null when the key existed.
func (s *RemoteStorage) SetNX(ctx context.Context, key string, value int64) (bool, error) {
	res, err := s.do(ctx, s.client, "SET", key, value, "NX")
	if err != nil {
		return false, err
	}

	return res != nil, nil
}

func (s *RemoteStorage) Get(ctx context.Context, key string) (interface{}, error) {
	return s.do(ctx, s.client, "GET", key)
}

func (s *RemoteStorage) Incr(ctx context.Context, key string) (interface{}, error) {
	return s.do(ctx, s.once, "INCR", key)
}

func (s *RemoteStorage) IncrBy(ctx context.Context, key string, n int64) (interface{}, error) {
	return s.do(ctx, s.once, "INCRBY", key, n)
}

// Ping checks that the endpoint accepts the credential.
func (s *RemoteStorage) Ping(ctx context.Context) error {
	_, err := s.do(ctx, s.client, "PING")
	return err
}

func (s *RemoteStorage) do(ctx context.Context, client *retryablehttp.Client, command string, args ...interface{}) (interface{}, error) {
	body, err := json.Marshal(append([]interface{}{command}, args...))
	if err != nil {
		return nil, errors.Wrapf(err, "rest storage %s encode failure", command)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "rest storage %s request failure", command)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "rest storage %s failure", command)
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, errors.Wrapf(err, "rest storage %s read failure", command)
	}

	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("rest storage %s failure: status %d", command, resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "rest storage %s decode failure", command)
	}

	if r.Error != "" {
		return nil, errors.Errorf("rest storage %s failure: %s", command, r.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("rest storage %s failure: status %d", command, resp.StatusCode)
	}

	s.logger.WithFields(logrus.Fields{
		"command": command,
		"result":  r.Result,
	}).Debug("rest storage reply")

	return r.Result, nil
}

// leveledLogger routes retryablehttp's key/value logging into logrus fields.
type leveledLogger struct {
	logger *logrus.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(toFields(keysAndValues)).Error(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(toFields(keysAndValues)).Info(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(toFields(keysAndValues)).Warn(msg)
}

func toFields(keysAndValues []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
