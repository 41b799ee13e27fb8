package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/openfroyo/urlcat/pkg/engine"
)

// testSSHServer is a minimal SSH server whose shell behaves like the PAN-OS CLI.
type testSSHServer struct {
	listener net.Listener
	config   *ssh.ServerConfig
	addr     string
	done     chan struct{}
	cli      *fakeCLI

	// stall, when set, makes the shell print a prompt and hang until closed.
	stall chan struct{}
}

func newTestSSHServer(t *testing.T) *testSSHServer {
	_, privateKey, err := generateTestKey()
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "admin" && string(pass) == "testpass" {
				return nil, nil
			}
			return nil, fmt.Errorf("invalid credentials")
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, pubKey ssh.PublicKey) (*ssh.Permissions, error) {
			return nil, nil
		},
	}
	config.AddHostKey(privateKey)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	server := &testSSHServer{
		listener: listener,
		config:   config,
		addr:     listener.Addr().String(),
		done:     make(chan struct{}),
		cli:      &fakeCLI{},
	}
	go server.serve()
	t.Cleanup(server.close)
	return server
}

func (s *testSSHServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		go s.handleConnection(conn)
	}
}

func (s *testSSHServer) handleConnection(netConn net.Conn) {
	defer netConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go s.handleChannel(channel, requests)
	}
}

func (s *testSSHServer) handleChannel(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "pty-req":
			req.Reply(true, nil)
		case "shell":
			req.Reply(true, nil)

			input, _ := io.ReadAll(channel)
			if s.stall != nil {
				channel.Write([]byte("admin@PA-VM> "))
				<-s.stall
				return
			}
			lines := strings.Split(strings.TrimRight(string(input), "\n"), "\n")
			output, _ := s.cli.RunScript(context.Background(), lines)
			channel.Write([]byte(output))

			status := make([]byte, 4)
			binary.BigEndian.PutUint32(status, 0)
			channel.SendRequest("exit-status", false, status)
			return
		default:
			// PAN-OS rejects exec requests
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

func (s *testSSHServer) close() {
	select {
	case <-s.done:
	default:
		close(s.done)
		s.listener.Close()
	}
}

func generateTestKey() (ssh.PublicKey, ssh.Signer, error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	signer, err := ssh.NewSignerFromKey(privKey)
	if err != nil {
		return nil, nil, err
	}
	publicKey, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return nil, nil, err
	}
	return publicKey, signer, nil
}

func testClientConfig(server *testSSHServer) *Config {
	host, port := parseAddress(server.addr)
	config := DefaultConfig(host, "admin")
	config.Port = port
	config.AuthMethod = AuthMethodPassword
	config.Password = "testpass"
	config.StrictHostKeyChecking = false
	config.ConnectionTimeout = 5 * time.Second
	config.JobPollInterval = time.Millisecond
	return config
}

func TestSSHClientConnect(t *testing.T) {
	server := newTestSSHServer(t)

	client, err := NewSSHClient(testClientConfig(server), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if !client.IsConnected() {
		t.Error("expected client to be connected")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
	if client.IsConnected() {
		t.Error("expected client to be disconnected")
	}
}

func TestSSHClientBadPassword(t *testing.T) {
	server := newTestSSHServer(t)

	config := testClientConfig(server)
	config.Password = "wrong"
	client, err := NewSSHClient(config, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	err = client.Connect(context.Background())
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if !terr.IsAuthError || terr.Temporary() {
		t.Errorf("expected permanent auth error, got %+v", terr)
	}
}

func TestSSHClientRunScriptNotConnected(t *testing.T) {
	client, err := NewSSHClient(passwordConfig("fw.example.com"), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := client.RunScript(context.Background(), []string{"show system info"}); err == nil {
		t.Error("expected error when not connected")
	}
}

func TestSSHClientRunScript(t *testing.T) {
	server := newTestSSHServer(t)

	client, err := NewSSHClient(testClientConfig(server), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	output, err := client.RunScript(context.Background(), []string{"configure", "commit", "exit"})
	if err != nil {
		t.Fatalf("RunScript() error: %v", err)
	}
	if !strings.Contains(output, "Configuration committed successfully") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestSSHClientRunScriptTimeout(t *testing.T) {
	server := newTestSSHServer(t)
	server.stall = make(chan struct{})
	t.Cleanup(func() { close(server.stall) })

	client, err := NewSSHClient(testClientConfig(server), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	output, err := client.RunScript(ctx, []string{"show system info"})
	var terr *TransportError
	if !errors.As(err, &terr) || !errors.Is(terr.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline TransportError, got %v", err)
	}
	if !terr.Temporary() {
		t.Error("expected timeout to be temporary")
	}
	if output != "" && !strings.HasPrefix(output, "admin@PA-VM>") {
		t.Errorf("unexpected partial output %q", output)
	}
	if elapsed := time.Since(start); elapsed > sessionDrainTimeout+time.Second {
		t.Errorf("RunScript took %v after the deadline", elapsed)
	}
}

func TestOpenAndReconcileOverSSH(t *testing.T) {
	server := newTestSSHServer(t)
	config := testClientConfig(server)
	config.Scope = engine.Scope{DeviceGroup: "branch"}

	sess, err := Open(context.Background(), config, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer sess.Close()

	ctx := context.Background()
	desired := engine.DesiredState{Object: engine.CustomURLCategory{
		Name:      "Internet Access List",
		URLValues: []string{"microsoft.com", "redhat.com"},
	}}

	observed, err := sess.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	res, err := engine.NewReconciler(sess).Reconcile(ctx, desired, observed)
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	if !res.Changed || res.Operation != engine.OperationCreate {
		t.Errorf("expected create, got %+v", res)
	}

	commit, err := sess.Commit(ctx, engine.CommitOptions{})
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if commit.PushJobID != "7" {
		t.Errorf("expected commit-all job 7, got %q", commit.PushJobID)
	}
}

func TestSSHClientKeyBasedAuth(t *testing.T) {
	server := newTestSSHServer(t)

	tmpDir := t.TempDir()
	keyPath := filepath.Join(tmpDir, "test_key")

	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	pemBlock, err := ssh.MarshalPrivateKey(privKey, "")
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(pemBlock), 0600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}

	config := testClientConfig(server)
	config.AuthMethod = AuthMethodKey
	config.Password = ""
	config.PrivateKeyPath = keyPath

	client, err := NewSSHClient(config, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect with key auth: %v", err)
	}
	defer client.Close()
}

// passwordConfig returns a valid password config for offline tests.
func passwordConfig(host string) *Config {
	config := DefaultConfig(host, "admin")
	config.Password = "secret"
	return config
}

func parseAddress(addr string) (string, int) {
	host, portStr, _ := net.SplitHostPort(addr)
	port := 0
	fmt.Sscanf(portStr, "%d", &port)
	return host, port
}
