// Package sftp publishes completed outputs to a directory on an SSH server.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/infrastructure/logger"
	"github.com/bnema/transq/internal/port"
)

const partSuffix = ".part"

type Options struct {
	Addr           string
	User           string
	Password       string
	KeyFile        string
	KnownHostsFile string
	Dir            string
}

// dialFunc opens a fresh SFTP session. The returned closer tears down the
// underlying transport.
type dialFunc func(ctx context.Context) (*sftp.Client, io.Closer, error)

type Store struct {
	dir  string
	dial dialFunc

	mu     sync.Mutex
	client *sftp.Client
	conn   io.Closer
}

func NewStore(opts Options) (*Store, error) {
	cfg, err := clientConfig(opts)
	if err != nil {
		return nil, err
	}

	addr := opts.Addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	dial := func(ctx context.Context) (*sftp.Client, io.Closer, error) {
		d := net.Dialer{Timeout: cfg.Timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, nil, fmt.Errorf("dial tcp %s: %w", addr, err)
		}
		clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
		}
		sshClient := ssh.NewClient(clientConn, chans, reqs)
		client, err := sftp.NewClient(sshClient)
		if err != nil {
			_ = sshClient.Close()
			return nil, nil, fmt.Errorf("create sftp client: %w", err)
		}
		return client, sshClient, nil
	}

	return newStore(opts.Dir, dial), nil
}

func newStore(dir string, dial dialFunc) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{dir: dir, dial: dial}
}

func clientConfig(opts Options) (*ssh.ClientConfig, error) {
	if opts.Addr == "" || opts.User == "" {
		return nil, fmt.Errorf("sftp: address and user are required")
	}

	var auths []ssh.AuthMethod
	if opts.KeyFile != "" {
		key, err := os.ReadFile(opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	}
	if opts.Password != "" {
		auths = append(auths, ssh.Password(opts.Password))
	}
	if len(auths) == 0 {
		return nil, fmt.Errorf("sftp: no auth method, set a password or key file")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if opts.KnownHostsFile != "" {
		cb, err := knownhosts.New(opts.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		hostKey = cb
	} else {
		logger.Warn.Printf("sftp: no known hosts file configured, host key of %s is not verified", opts.Addr)
	}

	return &ssh.ClientConfig{
		User:            opts.User,
		Auth:            auths,
		HostKeyCallback: hostKey,
		Timeout:         10 * time.Second,
	}, nil
}

// session returns the cached client, dialling when there is none.
func (s *Store) session(ctx context.Context) (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	client, conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.client, s.conn = client, conn
	return client, nil
}

// reset drops a session after a transport error so the next call redials.
func (s *Store) reset(client *sftp.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != client {
		return
	}
	_ = s.client.Close()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.client, s.conn = nil, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.client, s.conn = nil, nil
	return err
}

func (s *Store) remote(name string) string {
	return path.Join(s.dir, name)
}

// Upload writes to a .part file and renames it, so List never sees a
// partial object.
func (s *Store) Upload(ctx context.Context, localPath, name string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	client, err := s.session(ctx)
	if err != nil {
		return err
	}

	if err := client.MkdirAll(s.dir); err != nil {
		s.reset(client)
		return fmt.Errorf("ensure remote dir %s: %w", s.dir, err)
	}

	dst := s.remote(name)
	part := dst + partSuffix
	f, err := client.Create(part)
	if err != nil {
		s.reset(client)
		return fmt.Errorf("create remote file %s: %w", part, err)
	}
	if _, err := f.ReadFrom(src); err != nil {
		_ = f.Close()
		s.reset(client)
		return fmt.Errorf("copy to remote file %s: %w", part, err)
	}
	if err := f.Close(); err != nil {
		s.reset(client)
		return fmt.Errorf("close remote file %s: %w", part, err)
	}

	if err := client.PosixRename(part, dst); err != nil {
		// servers without the posix-rename extension refuse to overwrite
		_ = client.Remove(dst)
		if err := client.Rename(part, dst); err != nil {
			return fmt.Errorf("rename %s: %w", part, err)
		}
	}

	logger.Info.Printf("uploaded %s to sftp:%s", logger.SanitizeForLog(name), dst)
	return nil
}

func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, domain.StoredObject, error) {
	if name == "" || path.Base(name) != name || strings.HasSuffix(name, partSuffix) {
		return nil, domain.StoredObject{}, domain.ErrNotFound
	}
	client, err := s.session(ctx)
	if err != nil {
		return nil, domain.StoredObject{}, err
	}

	f, err := client.Open(s.remote(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.StoredObject{}, domain.ErrNotFound
		}
		s.reset(client)
		return nil, domain.StoredObject{}, fmt.Errorf("open remote file %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		s.reset(client)
		return nil, domain.StoredObject{}, fmt.Errorf("stat remote file %s: %w", name, err)
	}
	return f, domain.StoredObject{Name: name, Size: info.Size(), Modified: info.ModTime()}, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	client, err := s.session(ctx)
	if err != nil {
		return err
	}

	if err := client.Remove(s.remote(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrNotFound
		}
		s.reset(client)
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.StoredObject, error) {
	client, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := client.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		s.reset(client)
		return nil, fmt.Errorf("read remote dir %s: %w", s.dir, err)
	}

	objects := make([]domain.StoredObject, 0, len(entries))
	for _, e := range entries {
		if !e.Mode().IsRegular() || strings.HasSuffix(e.Name(), partSuffix) {
			continue
		}
		objects = append(objects, domain.StoredObject{
			Name:     e.Name(),
			Size:     e.Size(),
			Modified: e.ModTime(),
		})
	}
	return objects, nil
}

var (
	_ port.ContentStore = (*Store)(nil)
	_ port.Opener       = (*Store)(nil)
)
