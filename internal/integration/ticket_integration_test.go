//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/payroll"
	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/sequence"
	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/ticket"
)

const (
	skuWidget = "SKU-100"
	skuGadget = "SKU-200"
)

func TestTicketIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	pgC, dbURL := startPostgres(ctx, t)
	defer terminateContainer(t, pgC)

	rabbitC, rabbitURL := startRabbitMQ(ctx, t)
	defer terminateContainer(t, rabbitC)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, db.RunMigrations(dbURL, logger))

	pool, err := db.NewPool(ctx, dbURL)
	require.NoError(t, err)
	defer pool.Close()

	seedItem(ctx, t, pool, skuWidget, "5.00", 5)
	seedItem(ctx, t, pool, skuGadget, "12.50", 1)

	conn := dialAMQP(ctx, t, rabbitURL)
	defer conn.Close()
	queue := bindTicketCreatedQueue(t, conn)

	app := startTicketService(t, pool, conn, logger)
	defer app.stop()

	client := &http.Client{Timeout: 5 * time.Second}

	status, body := postTicket(ctx, t, client, app.baseURL,
		`{"customerAccountNo":"CUST1001","lines":[{"sku":"SKU-100","qty":2}]}`)
	require.Equal(t, http.StatusOK, status, body)

	var created struct {
		TicketID  int64       `json:"ticketId"`
		Subtotal  json.Number `json:"subtotal"`
		TaxAmount json.Number `json:"taxAmount"`
		Total     json.Number `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	require.Equal(t, int64(1001), created.TicketID)
	require.Equal(t, "10.00", created.Subtotal.String())
	require.Equal(t, "0.80", created.TaxAmount.String())
	require.Equal(t, "10.80", created.Total.String())
	require.Equal(t, 3, stockOf(ctx, t, pool, skuWidget))

	var ev events.TicketCreatedEvent
	waitForMessage(ctx, t, conn, queue, &ev)
	require.NoError(t, ev.Validate(events.EventTypeTicketCreated, 1))
	require.Equal(t, created.TicketID, ev.Payload.TicketID)
	require.Equal(t, "CUST1001", ev.PartitionKey)
	require.Equal(t, int64(1), ev.Sequence)

	// Override price wins over the list price; walk-in customer.
	status, body = postTicket(ctx, t, client, app.baseURL,
		`{"lines":[{"sku":"SKU-100","qty":1,"overridePrice":4.00}]}`)
	require.Equal(t, http.StatusOK, status, body)
	require.Contains(t, body, `"subtotal":4.00`)
	require.Contains(t, body, `"taxAmount":0.32`)

	// Second line is short on stock; the whole ticket is rejected.
	status, body = postTicket(ctx, t, client, app.baseURL,
		`{"customerAccountNo":"CUST1001","lines":[{"sku":"SKU-100","qty":1},{"sku":"SKU-200","qty":2}]}`)
	require.Equal(t, http.StatusConflict, status)
	require.JSONEq(t, `{"error":"Insufficient inventory for SKU-200"}`, body)
	require.Equal(t, 2, stockOf(ctx, t, pool, skuWidget))
	require.Equal(t, 1, stockOf(ctx, t, pool, skuGadget))

	status, body = postTicket(ctx, t, client, app.baseURL, `{"lines":[{"sku":"SKU-999","qty":1}]}`)
	require.Equal(t, http.StatusConflict, status)
	require.JSONEq(t, `{"error":"Unknown SKU SKU-999"}`, body)

	status, body = postTicket(ctx, t, client, app.baseURL, `{"lines":[]}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.JSONEq(t, `{"error":"Ticket must include at least one line."}`, body)
}

func TestPayrollImportIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pgC, dbURL := startPostgres(ctx, t)
	defer terminateContainer(t, pgC)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, db.RunMigrations(dbURL, logger))

	pool, err := db.NewPool(ctx, dbURL)
	require.NoError(t, err)
	defer pool.Close()

	importer := payroll.NewImporter(payroll.NewRepository(pool), logger)

	first := "EmployeeId,FirstName,LastName,Eligible,LimitPerPayPeriod\n" +
		"E100,Ada,Lovelace,true,250.00\n" +
		",Missing,Id,true,10\n"
	src, err := payroll.NewReader(strings.NewReader(first))
	require.NoError(t, err)
	sum, err := importer.Run(ctx, src)
	require.NoError(t, err)
	require.Equal(t, payroll.Summary{Total: 2, Success: 1, Failed: 1}, sum)

	second := "EmployeeId,FirstName,LastName,Eligible,LimitPerPayPeriod\n" +
		"E100,Ada,King,false,300\n"
	src, err = payroll.NewReader(strings.NewReader(second))
	require.NoError(t, err)
	sum, err = importer.Run(ctx, src)
	require.NoError(t, err)
	require.Equal(t, payroll.Summary{Total: 1, Success: 1}, sum)

	var (
		lastName string
		eligible bool
		limit    string
		count    int
	)
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT last_name, eligible, limit_per_pay_period::text, (SELECT count(*) FROM payroll_eligibility) FROM payroll_eligibility WHERE employee_id = 'E100'`,
	).Scan(&lastName, &eligible, &limit, &count))
	require.Equal(t, "King", lastName)
	require.False(t, eligible)
	require.Equal(t, "300.00", limit)
	require.Equal(t, 1, count)
}

type ticketApp struct {
	baseURL string
	stop    func()
}

func startTicketService(t *testing.T, pool *pgxpool.Pool, conn *amqp.Connection, logger *slog.Logger) *ticketApp {
	t.Helper()

	publisher, err := events.NewPublisher(conn, sequence.NewRepository(pool), events.PublisherOptions{})
	require.NoError(t, err)

	svc := ticket.NewService(ticket.NewPostgresGateway(ticket.NewPoolConnSource(pool)), publisher, logger)
	router := httpapi.NewRouter(httpapi.NewHandler(svc, logger, 5*time.Second), logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	return &ticketApp{
		baseURL: fmt.Sprintf("http://%s", ln.Addr().String()),
		stop: func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)
			_ = publisher.Close()

			select {
			case err := <-errCh:
				t.Logf("server error: %v", err)
			default:
			}
		},
	}
}

func startPostgres(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "tickets"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/tickets?sslmode=disable", host, mappedPort.Port())
	return container, dsn
}

func startRabbitMQ(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	return container, fmt.Sprintf("amqp://guest:guest@%s:%s/", host, mappedPort.Port())
}

func terminateContainer(t *testing.T, c testcontainers.Container) {
	t.Helper()
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Terminate(terminateCtx))
}

func seedItem(ctx context.Context, t *testing.T, pool *pgxpool.Pool, sku, price string, qty int) {
	t.Helper()
	_, err := pool.Exec(ctx,
		`INSERT INTO items (sku, description, price, qty_on_hand) VALUES ($1, $1, $2::numeric, $3)`,
		sku, price, qty)
	require.NoError(t, err)
}

func stockOf(ctx context.Context, t *testing.T, pool *pgxpool.Pool, sku string) int {
	t.Helper()
	var qty int
	require.NoError(t, pool.QueryRow(ctx, `SELECT qty_on_hand FROM items WHERE sku = $1`, sku).Scan(&qty))
	return qty
}

func postTicket(ctx context.Context, t *testing.T, client *http.Client, baseURL, payload string) (int, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/tickets", bytes.NewReader([]byte(payload)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, strings.TrimSpace(string(body))
}

func bindTicketCreatedQueue(t *testing.T, conn *amqp.Connection) string {
	t.Helper()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.ExchangeDeclare(events.EventsExchange, "topic", true, false, false, false, nil))

	q, err := ch.QueueDeclare("ticket-integration."+events.TicketCreatedRoutingKey, true, false, false, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, events.TicketCreatedRoutingKey, events.EventsExchange, false, nil))
	return q.Name
}

func waitForMessage[T any](ctx context.Context, t *testing.T, conn *amqp.Connection, queue string, dest *T) {
	t.Helper()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	backoff := 50 * time.Millisecond
	for {
		select {
		case <-pollCtx.Done():
			t.Fatalf("timed out waiting for message on %s: %v", queue, pollCtx.Err())
		default:
		}

		msg, ok, getErr := ch.Get(queue, true)
		require.NoError(t, getErr)
		if ok {
			require.NoError(t, json.Unmarshal(msg.Body, dest))
			return
		}

		time.Sleep(backoff)
		if backoff < time.Second {
			backoff *= 2
		}
	}
}

func dialAMQP(ctx context.Context, t *testing.T, rabbitURL string) *amqp.Connection {
	t.Helper()
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, err := amqp.DialConfig(rabbitURL, amqp.Config{
		Dial: func(network, addr string) (net.Conn, error) {
			return (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 5 * time.Second,
			}).DialContext(dialCtx, network, addr)
		},
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	require.NoError(t, err)
	return conn
}
