// Package sftp provides a storage client for media stored on SFTP servers.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/imyhxy/fiftyone/storage"
)

const pathPrefix = "sftp://"

// Client serves media files addressed as sftp://host/path. The connection
// parameters come from the configuration; the host segment of each path is
// only used to keep cache-relative paths unambiguous.
type Client struct {
	logger log.Logger
	client *sftp.Client
}

// New creates an SFTP storage client by dialing the configured host.
func New(l log.Logger, c Config) (*Client, error) {
	l = log.With(l, "client", storage.SFTP)

	sshClient, err := dial(c)
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to ssh with sftp protocol %w", err)
	}

	level.Debug(l).Log("msg", "sftp client", "host", c.Host, "port", c.Port)

	return &Client{logger: l, client: sftpClient}, nil
}

// Download fetches the remote file and writes it to localPath.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) error {
	remoteFile, err := split(remotePath)
	if err != nil {
		return err
	}

	src, err := c.client.Open(remoteFile)
	if err != nil {
		return &storage.TransferError{Op: "download", Path: remotePath, Err: err}
	}
	defer src.Close()

	if err := storage.WriteFile(localPath, src); err != nil {
		return &storage.TransferError{Op: "download", Path: remotePath, Err: err}
	}

	return nil
}

// Upload writes the local file to the given remote path.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) error {
	remoteFile, err := split(remotePath)
	if err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open <%s> %w", localPath, err)
	}
	defer src.Close()

	dir := path.Dir(remoteFile)
	if err := c.client.MkdirAll(dir); err != nil {
		return &storage.TransferError{Op: "upload", Path: remotePath, Err: err}
	}

	dst, err := c.client.Create(remoteFile)
	if err != nil {
		return &storage.TransferError{Op: "upload", Path: remotePath, Err: err}
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return &storage.TransferError{Op: "upload", Path: remotePath, Err: err}
	}

	if err := dst.Close(); err != nil {
		return &storage.TransferError{Op: "upload", Path: remotePath, Err: err}
	}

	return nil
}

// ListFolder returns the remote paths beneath the given folder.
func (c *Client) ListFolder(ctx context.Context, folder string, recursive bool) ([]string, error) {
	remoteDir, err := split(folder)
	if err != nil {
		return nil, err
	}

	host := hostSegment(folder)

	if !recursive {
		infos, err := c.client.ReadDir(remoteDir)
		if err != nil {
			return nil, &storage.TransferError{Op: "list", Path: folder, Err: err}
		}

		var paths []string
		for _, fi := range infos {
			if fi.Mode().IsRegular() {
				paths = append(paths, pathPrefix+host+path.Join(remoteDir, fi.Name()))
			}
		}

		return paths, nil
	}

	var paths []string
	w := c.client.Walk(remoteDir)
	for w.Step() {
		if err := w.Err(); err != nil {
			return nil, &storage.TransferError{Op: "list", Path: folder, Err: err}
		}

		if fi := w.Stat(); fi != nil && fi.Mode().IsRegular() {
			paths = append(paths, pathPrefix+host+w.Path())
		}
	}

	return paths, nil
}

// LocalPath validates the sftp:// prefix and returns the host-qualified
// remainder verbatim.
func (c *Client) LocalPath(remotePath string) (string, error) {
	if !strings.HasPrefix(remotePath, pathPrefix) {
		return "", &storage.InvalidPathError{Path: remotePath, Reason: "expected " + pathPrefix + " prefix"}
	}

	return remotePath[len(pathPrefix):], nil
}

// Helpers

// split extracts the absolute remote file path from sftp://host/path.
func split(remotePath string) (string, error) {
	if !strings.HasPrefix(remotePath, pathPrefix) {
		return "", &storage.InvalidPathError{Path: remotePath, Reason: "expected " + pathPrefix + " prefix"}
	}

	rest := remotePath[len(pathPrefix):]
	idx := strings.Index(rest, "/")
	if idx <= 0 || idx == len(rest)-1 {
		return "", &storage.InvalidPathError{Path: remotePath, Reason: "expected " + pathPrefix + "host/path"}
	}

	return rest[idx:], nil
}

func hostSegment(remotePath string) string {
	rest := strings.TrimPrefix(remotePath, pathPrefix)
	if idx := strings.Index(rest, "/"); idx > 0 {
		return rest[:idx]
	}

	return rest
}

func dial(c Config) (*ssh.Client, error) {
	auth, err := authMethods(c)
	if err != nil {
		return nil, fmt.Errorf("unable to get ssh auth method %w", err)
	}

	/* #nosec */
	client, err := ssh.Dial("tcp", fmt.Sprintf("%s:%s", c.Host, c.Port), &ssh.ClientConfig{
		User:            c.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec media hosts are trusted infrastructure
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to ssh %w", err)
	}

	return client, nil
}

func authMethods(c Config) ([]ssh.AuthMethod, error) {
	switch c.Auth.Method {
	case SSHAuthMethodPassword:
		return []ssh.AuthMethod{ssh.Password(c.Auth.Password)}, nil
	case SSHAuthMethodPublicKeyFile:
		m, err := publicKeyFile(c.Auth.PublicKeyFile)
		if err != nil {
			return nil, err
		}

		return []ssh.AuthMethod{m}, nil
	}

	return nil, errors.New("ssh auth method is not recognized, should be PASSWORD or PUBLIC_KEY_FILE")
}

func publicKeyFile(file string) (ssh.AuthMethod, error) {
	buffer, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("unable to read file <%s> %w", file, err)
	}

	key, err := ssh.ParsePrivateKey(buffer)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key %w", err)
	}

	return ssh.PublicKeys(key), nil
}
