package server

import (
	"context"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/gliderlabs/ssh"
	"github.com/pkg/errors"
	"github.com/zond/meshmush"
	"github.com/zond/meshmush/admission"
	"github.com/zond/meshmush/game"
	"github.com/zond/meshmush/pemfile"
	"github.com/zond/meshmush/storage"

	gossh "golang.org/x/crypto/ssh"
)

const (
	pruneInterval = time.Minute
)

type Server struct {
	config Config
}

func New(config Config) (*Server, error) {
	if config.Dir == "" {
		return nil, errors.New("no directory configured")
	}
	return &Server{config: config}, nil
}

// Start listens on the configured SSH address and runs until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.SSHAddr)
	if err != nil {
		return meshmush.WithStack(err)
	}
	return s.StartWithListener(ctx, ln)
}

// StartWithListener runs the server on ln until ctx is cancelled or the listener fails.
// It owns the one admission controller every surface shares.
func (s *Server) StartWithListener(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := os.MkdirAll(s.config.Dir, 0700); err != nil {
		return meshmush.WithStack(err)
	}
	signer, _, generated, err := pemfile.KeyParams{
		KeyPath:       filepath.Join(s.config.Dir, "host.pem"),
		SSHPubKeyPath: filepath.Join(s.config.Dir, "host.pub"),
	}.Ensure()
	if err != nil {
		return meshmush.WithStack(err)
	}
	if generated {
		log.Printf("Generated host key in %q", s.config.Dir)
	}

	store, err := storage.Open(ctx, storage.Options{
		Dir:      s.config.Dir,
		AuditLog: s.config.auditLog(),
	})
	if err != nil {
		return meshmush.WithStack(err)
	}
	defer store.Close()

	limiter := admission.New()
	go limiter.RunPruneLoop(ctx, pruneInterval)

	g, err := game.New(ctx, store, limiter, game.Options{
		SpawnRoom: s.config.SpawnRoom,
		Wizards:   s.config.Wizards,
	})
	if err != nil {
		return meshmush.WithStack(err)
	}

	control, err := ListenControl(s.config.controlSocket(), g.Admin())
	if err != nil {
		return meshmush.WithStack(err)
	}
	go func() {
		if err := control.Serve(ctx); err != nil {
			log.Printf("control socket: %v", err)
		}
	}()

	sshServer := &ssh.Server{
		Handler: g.HandleSession,
	}
	sshServer.AddHostKey(signer)
	go func() {
		<-ctx.Done()
		sshServer.Close()
	}()

	log.Printf("Listening on %q with public key %q, control socket %q", ln.Addr(), gossh.FingerprintSHA256(signer.PublicKey()), s.config.controlSocket())
	if err := sshServer.Serve(ln); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return meshmush.WithStack(err)
	}
	return nil
}
