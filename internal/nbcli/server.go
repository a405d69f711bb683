package nbcli

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/config"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/logging"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/wait"
)

// serviceName is the systemd unit running the NSFS endpoint.
const serviceName = "noobaa"

// Server drives host-level operations on the machine running the NSFS
// service: TLS provisioning, service restarts and path expansion.
type Server struct {
	runner Runner
	cfg    *config.Config
	log    logging.Logger
}

// NewServer returns a server handle bound to the given remote runner.
func NewServer(runner Runner, cfg *config.Config, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	return &Server{runner: runner, cfg: cfg, log: log}
}

// ConfigRootPath resolves the configured config root against the remote
// home directory. A leading "~/" is expanded remotely, not locally.
func (s *Server) ConfigRootPath(ctx context.Context) (string, error) {
	root := s.cfg.ConfigRoot
	if root == "~" || strings.HasPrefix(root, "~/") {
		home, err := s.runner.HomeDir(ctx)
		if err != nil {
			return "", fmt.Errorf("expand config root: %w", err)
		}
		root = path.Join(home, strings.TrimPrefix(root, "~"))
	}
	return root, nil
}

// CreateTLSCertificates generates a self-signed key and certificate in
// certsDir on the remote host and returns the remote certificate path.
func (s *Server) CreateTLSCertificates(ctx context.Context, certsDir string) (string, error) {
	if res, err := s.runner.Exec(ctx, "sudo mkdir -p "+certsDir); err != nil {
		return "", fmt.Errorf("create certs dir: %w", err)
	} else if res.Code != 0 {
		return "", fmt.Errorf("create certs dir: %s", res.Stderr)
	}

	keyPath := path.Join(certsDir, "tls.key")
	certPath := path.Join(certsDir, "tls.crt")
	cmd := fmt.Sprintf(
		"sudo openssl req -x509 -nodes -newkey rsa:4096 -keyout %s -out %s -days 365 -subj '/CN=%s'",
		keyPath, certPath, s.cfg.Host)
	res, err := runLogged(ctx, s.runner, s.log, "CreateTLSCertificates", cmd)
	if err != nil {
		return "", fmt.Errorf("generate certificates: %w", err)
	}
	if res.Code != 0 {
		return "", fmt.Errorf("generate certificates: %s", res.Stderr)
	}
	return certPath, nil
}

// SetCertsDir points the NSFS service at certsDir and restarts it so the
// endpoint serves the new certificate.
func (s *Server) SetCertsDir(ctx context.Context, certsDir string) error {
	root, err := s.ConfigRootPath(ctx)
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf("sudo %s setting set_certs_dir --config_root %s --certs_dir %s",
		s.cfg.NoobaaCLIPath, root, certsDir)
	res, err := runLogged(ctx, s.runner, s.log, "SetCertsDir", cmd)
	if err != nil {
		return fmt.Errorf("set certs dir: %w", err)
	}
	if res.Code != 0 {
		return fmt.Errorf("set certs dir: %s", strings.TrimSpace(res.Stdout))
	}
	return s.RestartService(ctx)
}

// RestartService restarts the NSFS systemd unit and waits for it to
// report active again.
func (s *Server) RestartService(ctx context.Context) error {
	res, err := runLogged(ctx, s.runner, s.log, "RestartService", "sudo systemctl restart "+serviceName)
	if err != nil {
		return fmt.Errorf("restart %s: %w", serviceName, err)
	}
	if res.Code != 0 {
		return fmt.Errorf("restart %s: %s", serviceName, res.Stderr)
	}

	return wait.For(ctx, 2*time.Second, time.Minute, func(ctx context.Context) (bool, error) {
		res, err := s.runner.Exec(ctx, "sudo systemctl is-active "+serviceName)
		if err != nil {
			return false, err
		}
		return res.Code == 0 && strings.TrimSpace(res.Stdout) == "active", nil
	})
}

// DownloadCert copies the endpoint certificate from the remote host to
// localPath so S3 clients can verify the TLS connection.
func (s *Server) DownloadCert(remoteCertPath, localPath string) error {
	if err := s.runner.Download(remoteCertPath, localPath); err != nil {
		return fmt.Errorf("download certificate: %w", err)
	}
	return nil
}
