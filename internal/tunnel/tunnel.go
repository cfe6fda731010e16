// Package tunnel lets a myr session reach a schema/query backend that lives
// behind an AMQP broker instead of a direct MySQL connection: any session
// backend, tunnelled through a named queue via correlated request/reply
// messages.
package tunnel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/myr-db/myr/internal/applog"
	"github.com/myr-db/myr/internal/queryrunner"
	"github.com/myr-db/myr/internal/schema"
)

// requestKind discriminates the two operations a tunnel carries.
type requestKind string

const (
	kindQuery  requestKind = "query"
	kindSchema requestKind = "schema"
)

// request is the wire format published to the agent's queue.
type request struct {
	Kind requestKind `json:"kind"`
	SQL  string      `json:"sql,omitempty"`
}

// response is the wire format published back to the client's reply queue.
type response struct {
	Rows    [][]string      `json:"rows,omitempty"`
	Catalog *schema.Catalog `json:"catalog,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client dials a queue named for a remote myr agent and implements
// queryrunner.Backend and schema.Backend by round-tripping requests over
// AMQP with a correlation ID and an exclusive reply queue, the same pattern
// client/conn.go uses for its single SQL driver call.
type Client struct {
	conn       *amqp.Connection
	queueName  string
	rpcTimeout time.Duration
	log        *applog.Logger
}

// NewClient wraps an already-dialed AMQP connection. queueName must match
// the Agent's QueueName.
func NewClient(conn *amqp.Connection, queueName string, rpcTimeout time.Duration) *Client {
	return &Client{conn: conn, queueName: queueName, rpcTimeout: rpcTimeout, log: applog.New("tunnel").With("client")}
}

func (c *Client) call(ctx context.Context, req request) (response, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return response{}, fmt.Errorf("tunnel: open channel: %w", err)
	}
	defer ch.Close()

	replyQueue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return response{}, fmt.Errorf("tunnel: declare reply queue: %w", err)
	}

	corrID := fmt.Sprintf("%d-%s", time.Now().UnixNano(), req.Kind)

	body, err := json.Marshal(req)
	if err != nil {
		return response{}, fmt.Errorf("tunnel: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, "", c.queueName, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		ReplyTo:       replyQueue.Name,
		Body:          body,
	})
	if err != nil {
		return response{}, fmt.Errorf("tunnel: publish: %w", err)
	}

	msgs, err := ch.Consume(replyQueue.Name, "", true, true, false, false, nil)
	if err != nil {
		return response{}, fmt.Errorf("tunnel: consume reply: %w", err)
	}

	select {
	case <-ctx.Done():
		return response{}, fmt.Errorf("tunnel: %w", ctx.Err())
	case msg, ok := <-msgs:
		if !ok {
			return response{}, errors.New("tunnel: reply channel closed")
		}
		if msg.CorrelationId != corrID {
			return response{}, errors.New("tunnel: correlation id mismatch")
		}
		var resp response
		if err := json.Unmarshal(msg.Body, &resp); err != nil {
			return response{}, fmt.Errorf("tunnel: unmarshal reply: %w", err)
		}
		if resp.Error != "" {
			return response{}, errors.New(resp.Error)
		}
		return resp, nil
	}
}

// FetchSchema implements schema.Backend.
func (c *Client) FetchSchema(ctx context.Context) (*schema.Catalog, error) {
	resp, err := c.call(ctx, request{Kind: kindSchema})
	if err != nil {
		return nil, err
	}
	if resp.Catalog == nil {
		return &schema.Catalog{}, nil
	}
	return resp.Catalog, nil
}

// RunQuery implements queryrunner.Backend. The agent runs the query to
// completion and returns the full result set in one reply, so the returned
// RowStream is a simple in-memory replay rather than a live cursor.
func (c *Client) RunQuery(ctx context.Context, sql string) (queryrunner.RowStream, error) {
	resp, err := c.call(ctx, request{Kind: kindQuery, SQL: sql})
	if err != nil {
		return nil, err
	}
	return &bufferedRowStream{rows: resp.Rows}, nil
}

type bufferedRowStream struct {
	rows []([]string)
	i    int
}

func (s *bufferedRowStream) Next(ctx context.Context) (queryrunner.QueryRow, bool, error) {
	if err := ctx.Err(); err != nil {
		return queryrunner.QueryRow{}, false, err
	}
	if s.i >= len(s.rows) {
		return queryrunner.QueryRow{}, false, nil
	}
	row := s.rows[s.i]
	s.i++
	return queryrunner.QueryRow{Values: row}, true, nil
}

func (s *bufferedRowStream) Close() error { return nil }

// Agent serves schema and query requests for one queue name against a
// local backend.
type Agent struct {
	conn          *amqp.Connection
	queueName     string
	schemaBackend schema.Backend
	queryBackend  queryrunner.Backend
	log           *applog.Logger
}

// NewAgent builds an Agent that will serve queueName once Run is called.
func NewAgent(conn *amqp.Connection, queueName string, schemaBackend schema.Backend, queryBackend queryrunner.Backend) *Agent {
	return &Agent{
		conn:          conn,
		queueName:     queueName,
		schemaBackend: schemaBackend,
		queryBackend:  queryBackend,
		log:           applog.New("tunnel").With("agent"),
	}
}

// Run declares the agent's queue and serves requests until ctx is
// cancelled. Each delivery is handled on its own goroutine, matching the
// teacher's per-message dispatch in Handler.Start.
func (a *Agent) Run(ctx context.Context) error {
	ch, err := a.conn.Channel()
	if err != nil {
		return fmt.Errorf("tunnel: open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(a.queueName, false, true, false, false, nil); err != nil {
		return fmt.Errorf("tunnel: declare queue: %w", err)
	}

	msgs, err := ch.Consume(a.queueName, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("tunnel: consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("tunnel: delivery channel closed")
			}
			go a.handle(ctx, ch, msg)
		}
	}
}

func (a *Agent) handle(ctx context.Context, ch *amqp.Channel, msg amqp.Delivery) {
	var req request
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		a.respond(ctx, ch, msg, response{Error: "tunnel: malformed request: " + err.Error()})
		return
	}

	switch req.Kind {
	case kindSchema:
		catalog, err := a.schemaBackend.FetchSchema(ctx)
		if err != nil {
			a.respond(ctx, ch, msg, response{Error: err.Error()})
			return
		}
		a.respond(ctx, ch, msg, response{Catalog: catalog})
	case kindQuery:
		stream, err := a.queryBackend.RunQuery(ctx, req.SQL)
		if err != nil {
			a.respond(ctx, ch, msg, response{Error: err.Error()})
			return
		}
		defer stream.Close()

		var rows [][]string
		for {
			row, ok, err := stream.Next(ctx)
			if err != nil {
				a.respond(ctx, ch, msg, response{Error: err.Error()})
				return
			}
			if !ok {
				break
			}
			rows = append(rows, row.Values)
		}
		a.respond(ctx, ch, msg, response{Rows: rows})
	default:
		a.respond(ctx, ch, msg, response{Error: "tunnel: unknown request kind " + string(req.Kind)})
	}
}

func (a *Agent) respond(ctx context.Context, ch *amqp.Channel, msg amqp.Delivery, resp response) {
	body, err := json.Marshal(resp)
	if err != nil {
		a.log.Errorf("marshal response: %v", err)
		return
	}
	err = ch.PublishWithContext(ctx, "", msg.ReplyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: msg.CorrelationId,
		Body:          body,
	})
	if err != nil {
		a.log.Errorf("publish response: %v", err)
	}
}
