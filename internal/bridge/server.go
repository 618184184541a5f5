// Package bridge is the HTTP surface the in-browser shim talks to: it
// receives page snapshots, hands back queued page commands and injected
// triggers, reports trigger clicks, and relays gateway messages.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/html"

	"github.com/nhle/mailtask/internal/dom"
	"github.com/nhle/mailtask/internal/gateway"
	"github.com/nhle/mailtask/internal/host"
	"github.com/nhle/mailtask/internal/logging"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/observer"
)

// MaxSnapshotSize bounds a posted page snapshot (32MB).
const MaxSnapshotSize = 32 * 1024 * 1024

// Click is a trigger activation reported by the shim, with the email
// context extracted at the moment of the click.
type Click struct {
	Trigger observer.Trigger
	Email   model.EmailContext
	Thread  []model.ThreadMessage
}

// Config wires a Server.
type Config struct {
	Page *host.Live

	// Gateway handles /rpc messages. The shim never sees the token.
	Gateway gateway.Sender

	// Notifications, when set, are drained into /commands responses.
	Notifications <-chan model.Notification

	// Gatherer backs /metrics; nil disables the route.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// Server is the page bridge.
type Server struct {
	app    *fiber.App
	page   *host.Live
	gw     gateway.Sender
	notes  <-chan model.Notification
	clicks chan Click
	logger *slog.Logger
}

// New builds the fiber app and its routes.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	s := &Server{
		page:   cfg.Page,
		gw:     cfg.Gateway,
		notes:  cfg.Notifications,
		clicks: make(chan Click, 4),
		logger: logging.WithOperation(cfg.Logger, "bridge"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "mailtask",
		BodyLimit:             MaxSnapshotSize,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(recover.New())

	app.Post("/snapshot", s.handleSnapshot)
	app.Get("/commands", s.handleCommands)
	app.Post("/trigger", s.handleTrigger)
	app.Post("/rpc", s.handleRPC)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Clicks delivers trigger activations. Clicks are dropped when nobody
// reads them.
func (s *Server) Clicks() <-chan Click {
	return s.clicks
}

// Listen serves on addr until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listen(addr) }()
	s.logger.Info("bridge listening", slog.String("addr", addr))

	select {
	case <-ctx.Done():
		return s.app.Shutdown()
	case err := <-errCh:
		return err
	}
}

type snapshotRequest struct {
	URL     string `json:"url"`
	HTML    string `json:"html"`
	Cookies string `json:"cookies"`
}

func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	var req snapshotRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid snapshot body")
	}
	if strings.TrimSpace(req.HTML) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "html is required")
	}

	root, err := html.Parse(strings.NewReader(req.HTML))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unparseable html")
	}
	if req.Cookies != "" {
		sess, err := host.NewSession(req.URL, req.Cookies)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		s.page.SetSession(sess)
	}
	s.page.Replace(root, req.URL)

	s.logger.Debug("snapshot received", slog.Int("bytes", len(req.HTML)))
	return c.SendStatus(fiber.StatusNoContent)
}

type triggerRef struct {
	Kind observer.Kind `json:"kind"`
	Path string        `json:"path"`
}

type commandsResponse struct {
	Commands      []host.Command       `json:"commands"`
	Triggers      []triggerRef         `json:"triggers"`
	Notifications []model.Notification `json:"notifications"`
}

// handleCommands returns what the shim should mirror onto the real page:
// queued clicks, the trigger elements to render and pending notifications.
func (s *Server) handleCommands(c *fiber.Ctx) error {
	resp := commandsResponse{
		Commands:      s.page.PendingCommands(),
		Triggers:      []triggerRef{},
		Notifications: s.drainNotifications(),
	}
	if resp.Commands == nil {
		resp.Commands = []host.Command{}
	}
	s.page.Read(func(doc *goquery.Document) {
		for _, t := range observer.Triggers(doc) {
			resp.Triggers = append(resp.Triggers, triggerRef{Kind: t.Kind, Path: host.CSSPath(t.Node)})
		}
	})
	return c.JSON(resp)
}

func (s *Server) drainNotifications() []model.Notification {
	out := []model.Notification{}
	if s.notes == nil {
		return out
	}
	for {
		select {
		case n := <-s.notes:
			out = append(out, n)
		default:
			return out
		}
	}
}

type triggerRequest struct {
	Path string `json:"path"`
}

type triggerResponse struct {
	Email  model.EmailContext    `json:"email"`
	Thread []model.ThreadMessage `json:"thread"`
}

// handleTrigger resolves a clicked trigger element and extracts the email
// context it stands for.
func (s *Server) handleTrigger(c *fiber.Ctx) error {
	var req triggerRequest
	if err := c.BodyParser(&req); err != nil || req.Path == "" {
		return fiber.NewError(fiber.StatusBadRequest, "path is required")
	}

	var (
		click Click
		found bool
	)
	s.page.Read(func(doc *goquery.Document) {
		target := doc.Find(req.Path).First()
		if target.Length() == 0 {
			return
		}
		for _, t := range observer.Triggers(doc) {
			if t.Node == target.Nodes[0] {
				click = Click{
					Trigger: t,
					Email:   dom.ExtractActiveContext(doc, t.Scope),
					Thread:  dom.ScanThread(doc),
				}
				found = true
				return
			}
		}
	})
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "no trigger at "+req.Path)
	}

	select {
	case s.clicks <- click:
	default:
		s.logger.Debug("trigger click dropped, no consumer")
	}
	return c.JSON(triggerResponse{Email: click.Email, Thread: click.Thread})
}

// handleRPC relays one gateway message. Gateway failures are reported in
// the response body with status 200, as the gateway's own error channel.
func (s *Server) handleRPC(c *fiber.Ctx) error {
	if s.gw == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "gateway not configured")
	}
	var req gateway.Request
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid message")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return c.JSON(s.gw.Send(c.UserContext(), req))
}
