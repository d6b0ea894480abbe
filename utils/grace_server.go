package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	// sized for multi-gigabyte uploads and streams
	DefaultReadTimeout  = 30 * time.Minute
	DefaultWriteTimeout = 30 * time.Minute

	gracefulEnvKey   = "MUSICBOX_GRACEFUL"
	gracefulEnvValue = gracefulEnvKey + "=1"
	gracefulFD       = 3
	shutdownTimeout  = 30 * time.Second
)

// Server is an http.Server that shuts down on SIGTERM/SIGINT and hands its listener to a fresh
// process on SIGUSR2.
type Server struct {
	*http.Server

	log        *zap.Logger
	listener   net.Listener
	inherited  bool
	signals    chan os.Signal
	shutdownCh chan struct{}
}

// NewServer creates a Server with the given timeouts.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			ErrorLog:          zap.NewStdLog(log.Named("http")),
		},
		log:        log,
		inherited:  os.Getenv(gracefulEnvKey) != "",
		signals:    make(chan os.Signal, 1),
		shutdownCh: make(chan struct{}),
	}
}

// ListenAndServe serves plain HTTP until a shutdown signal has been handled.
func (srv *Server) ListenAndServe() error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := srv.netListener(addr)
	if err != nil {
		return err
	}
	srv.listener = ln
	return srv.serve()
}

// ListenAndServeTLS serves HTTPS until a shutdown signal has been handled.
func (srv *Server) ListenAndServeTLS(certFile, keyFile string) error {
	addr := srv.Addr
	if addr == "" {
		addr = ":https"
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if srv.TLSConfig != nil {
		cfg = srv.TLSConfig.Clone()
	}
	if cfg.NextProtos == nil {
		cfg.NextProtos = []string{"http/1.1"}
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	cfg.Certificates = []tls.Certificate{cert}

	ln, err := srv.netListener(addr)
	if err != nil {
		return err
	}
	srv.listener = tls.NewListener(ln, cfg)
	return srv.serve()
}

func (srv *Server) serve() error {
	go srv.handleSignals()
	srv.log.Info("http server listening", zap.String("addr", srv.listener.Addr().String()), zap.Bool("inherited", srv.inherited))
	err := srv.Server.Serve(srv.listener)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	<-srv.shutdownCh
	return nil
}

func (srv *Server) netListener(addr string) (net.Listener, error) {
	if srv.inherited {
		ln, err := net.FileListener(os.NewFile(gracefulFD, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	signal.Notify(srv.signals, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)

	for sig := range srv.signals {
		switch sig {
		case syscall.SIGTERM, syscall.SIGINT:
			srv.log.Info("shutting down http server", zap.String("signal", sig.String()))
			srv.shutdown()
			return
		case syscall.SIGUSR2:
			pid, err := srv.forkChild()
			if err != nil {
				srv.log.Error("graceful restart failed, still serving", zap.Error(err))
				continue
			}
			srv.log.Info("graceful restart: child started", zap.Int("pid", pid))
			srv.shutdown()
			return
		}
	}
}

func (srv *Server) shutdown() {
	signal.Stop(srv.signals)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		srv.log.Error("http server shutdown", zap.Error(err))
	} else {
		srv.log.Info("http server stopped")
	}
	close(srv.shutdownCh)
}

// forkChild re-executes the binary with the listening socket as fd 3.
func (srv *Server) forkChild() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener %T cannot be handed over", srv.listener)
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer file.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != gracefulEnvValue {
			env = append(env, e)
		}
	}
	env = append(env, gracefulEnvValue)

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return pid, nil
}

// GraceServer serves handler on addr with graceful shutdown and restart.
func GraceServer(addr string, handler http.Handler, log *zap.Logger) error {
	return NewServer(addr, handler, DefaultReadTimeout, DefaultWriteTimeout, log).ListenAndServe()
}

// GraceServerTLS is GraceServer over TLS.
func GraceServerTLS(addr, certFile, keyFile string, handler http.Handler, log *zap.Logger) error {
	return NewServer(addr, handler, DefaultReadTimeout, DefaultWriteTimeout, log).ListenAndServeTLS(certFile, keyFile)
}
