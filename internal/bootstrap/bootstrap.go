// Package bootstrap assembles an application instance: configuration,
// extensions, middleware and route groups, in that order.
package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jacobshu/forum/api/admin"
	"github.com/jacobshu/forum/api/auth"
	"github.com/jacobshu/forum/api/forum"
	"github.com/jacobshu/forum/api/handler"
	"github.com/jacobshu/forum/api/middleware"
	authsvc "github.com/jacobshu/forum/internal/auth"
	"github.com/jacobshu/forum/internal/config"
	"github.com/jacobshu/forum/internal/core"
	"github.com/jacobshu/forum/internal/database"
	"github.com/jacobshu/forum/internal/debugbar"
	"github.com/jacobshu/forum/internal/logger"
	"github.com/jacobshu/forum/internal/mail"
	"github.com/jacobshu/forum/internal/metrics"
	"github.com/jacobshu/forum/internal/session"
	"github.com/jonboulle/clockwork"
)

// LoginView is the endpoint anonymous users are sent to.
const LoginView = "auth.login_route"

type options struct {
	store    database.Store
	clock    clockwork.Clock
	mailOpts []mail.Option
}

type Option func(*options)

// WithStore serves the route groups from s instead of the SQL binding.
func WithStore(s database.Store) Option {
	return func(o *options) { o.store = s }
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithMailOptions(opts ...mail.Option) Option {
	return func(o *options) { o.mailOpts = append(o.mailOpts, opts...) }
}

// CreateApp builds a fully wired application instance. Every call returns
// a new instance with its own extensions.
func CreateApp(cfg *config.Config, log *slog.Logger, opts ...Option) (*core.App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := core.New(cfg, log)

	if err := configure(app, o); err != nil {
		return nil, fmt.Errorf("configure: %w", err)
	}
	if err := bindExtensions(app, o); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("bind extensions: %w", err)
	}
	if err := mountRoutes(app); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("mount routes: %w", err)
	}

	log.Info("Application created", "env", cfg.AppEnv, "groups", len(app.Groups()))
	return app, nil
}

func configure(app *core.App, o options) error {
	if err := app.Config.Validate(); err != nil {
		return err
	}
	app.Settings = app.Config.Settings()
	if o.clock != nil {
		app.Clock = o.clock
	}
	if app.Config.DatabaseURI != "" {
		app.Log.Warn("DATABASE_URI is set but ignored; the store uses DEV_DATABASE_URI")
	}
	return nil
}

func bindExtensions(app *core.App, o options) error {
	s := app.Settings

	db, err := database.Open(database.Options{
		URI:                s.String("SQLALCHEMY_DATABASE_URI"),
		Echo:               s.Bool("SQLALCHEMY_ECHO"),
		TrackModifications: s.Bool("SQLALCHEMY_TRACK_MODIFICATIONS"),
	}, logger.Named(app.Log, "database"))
	if err != nil {
		return err
	}
	app.DB = db
	app.Store = db
	if o.store != nil {
		app.Store = o.store
	}

	app.Metrics = metrics.New()
	db.OnModify(func(m database.Modification) {
		app.Metrics.Modifications.WithLabelValues(m.Table, m.Op).Inc()
	})

	app.Migrator, err = database.NewMigrator(db, logger.Named(app.Log, "migrate"))
	if err != nil {
		return err
	}

	app.Auth, err = authsvc.NewAuthService(authsvc.Config{
		SigningKey: []byte(s.String("SECRET_KEY")),
		Clock:      app.Clock,
	})
	if err != nil {
		return err
	}

	app.Login = session.NewManager(session.Config{
		SecretKey: s.String("SECRET_KEY"),
		Secure:    !app.Config.IsDev(),
		LoginView: LoginView,
	}, logger.Named(app.Log, "session"))
	app.Login.SetUserLoader(app.Store.GetUser)

	port, err := app.Config.MailPortNumber()
	if err != nil {
		return err
	}
	app.Mail = mail.New(mail.Config{
		Server:           s.String("MAIL_SERVER"),
		Port:             port,
		Username:         s.String("MAIL_USERNAME"),
		Password:         s.String("MAIL_PASSWORD"),
		DefaultSender:    s.String("MAIL_DEFAULT_SENDER"),
		UseTLS:           s.Bool("MAIL_USE_TLS"),
		UseSSL:           s.Bool("MAIL_USE_SSL"),
		Debug:            s.Bool("MAIL_DEBUG"),
		SuppressSend:     s.Bool("MAIL_SUPPRESS_SEND"),
		Testing:          s.Bool("TESTING"),
		ASCIIAttachments: s.Bool("MAIL_ASCII_ATTACHMENTS"),
		MaxEmails:        s.Int("MAIL_MAX_EMAILS"),
	}, logger.Named(app.Log, "mail"), o.mailOpts...)

	app.Toolbar = debugbar.New(debugbar.Config{
		Enabled:               s.Bool("DEBUG_TB_ENABLED"),
		InterceptRedirects:    s.Bool("DEBUG_TB_INTERCEPT_REDIRECTS"),
		TemplateEditorEnabled: s.Bool("DEBUG_TB_TEMPLATE_EDITOR_ENABLED"),
	}, s, app.Clock)

	return nil
}

type groupFunc func(*core.App) (core.RouteGroup, error)

func group[G core.RouteGroup](fn func(*core.App) (G, error)) groupFunc {
	return func(app *core.App) (core.RouteGroup, error) {
		g, err := fn(app)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

func mountRoutes(app *core.App) error {
	app.Use(
		middleware.Logger(logger.Named(app.Log, "http")),
		middleware.Recoverer(app.Log, app.Settings.Bool("DEBUG")),
		middleware.Metrics(app.Metrics, "/admin/metrics", "/healthz"),
		app.Toolbar.Middleware,
		app.Login.Middleware,
	)

	if err := mountRoot(app); err != nil {
		return err
	}

	for _, newGroup := range []groupFunc{group(auth.New), group(admin.New), group(forum.New)} {
		g, err := newGroup(app)
		if err != nil {
			return err
		}
		if err := app.Mount(g); err != nil {
			return err
		}
	}

	return app.Login.Resolve(func(endpoint string) (string, error) {
		return app.URLFor(endpoint)
	})
}

func mountRoot(app *core.App) error {
	index := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := app.URLFor("forum.index_route")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, u, http.StatusFound)
	})

	health := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := app.Store.Ping(r.Context()); err != nil {
			app.Log.Warn("Health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	static := http.StripPrefix("/static", middleware.MetricsInc(app.Metrics.StaticHits)(handler.Static()))

	if err := app.Handle("index", http.MethodGet, "/", index); err != nil {
		return err
	}
	if err := app.Handle("healthz", http.MethodGet, "/healthz", health); err != nil {
		return err
	}
	return app.Handle("static", http.MethodGet, "/static/*", static)
}
