package test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mayingwei/myrpc/client"
	"github.com/mayingwei/myrpc/message"
	"github.com/mayingwei/myrpc/middleware"
	"github.com/mayingwei/myrpc/registry"
	"github.com/mayingwei/myrpc/server"
	"go.uber.org/zap"
)

// ---- sample services ----

type HelloServiceImpl1 struct{}

func (h *HelloServiceImpl1) Hello(name string) (string, error) {
	return "server1: " + name + " Hello from HelloServiceImpl1", nil
}

type HelloServiceImpl2 struct{}

func (h *HelloServiceImpl2) Hello(name string) (string, error) {
	return "server2: " + name + " Hello from HelloServiceImpl2", nil
}

type FaultyService struct{}

func (f *FaultyService) Hello(name string) (string, error) {
	return "", errors.New("boom")
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func startServer(t *testing.T, cluster *registry.MemoryCluster, version string, impl any) (*server.Server, string) {
	t.Helper()
	svr := server.NewServer()
	svr.Use(middleware.LoggingMiddleware(zap.NewNop()))
	if err := svr.Register("HelloService", version, impl); err != nil {
		t.Fatal(err)
	}
	addr := freeAddr(t)
	var reg registry.Registrar
	if cluster != nil {
		reg = registry.NewServiceRegistry(cluster.Connect(), nil)
	}
	go svr.Serve("tcp", addr, addr, reg)
	time.Sleep(100 * time.Millisecond)
	t.Cleanup(func() { svr.Shutdown(time.Second) })
	return svr, addr
}

func discovery(cluster *registry.MemoryCluster) *registry.ServiceDiscovery {
	return registry.NewServiceDiscovery(func() (registry.Conn, error) {
		return cluster.Connect(), nil
	}, nil, nil)
}

// Single server: register, discover, call, get the greeting back.
func TestSingleServer(t *testing.T) {
	cluster := registry.NewMemoryCluster()
	startServer(t, cluster, "1.0", &HelloServiceImpl1{})

	proxy := client.NewProxy("HelloService", "1.0",
		client.WithDiscovery(discovery(cluster)),
		client.WithCallTimeout(2*time.Second))

	result, err := proxy.Call(context.Background(), "Hello", "Jack1")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if result != "server1: Jack1 Hello from HelloServiceImpl1" {
		t.Errorf("got %v", result)
	}
}

// Two servers under one key: repeated calls reach both.
func TestTwoServersSameKey(t *testing.T) {
	cluster := registry.NewMemoryCluster()
	startServer(t, cluster, "1.0", &HelloServiceImpl1{})
	startServer(t, cluster, "1.0", &HelloServiceImpl2{})

	proxy := client.NewProxy("HelloService", "1.0",
		client.WithDiscovery(discovery(cluster)),
		client.WithCallTimeout(2*time.Second))

	seen := map[string]int{}
	for i := 0; i < 100; i++ {
		result, err := proxy.Call(context.Background(), "Hello", fmt.Sprintf("Jack%d", i))
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		prefix := strings.SplitN(result.(string), ":", 2)[0]
		seen[prefix]++
	}
	if seen["server1"] == 0 || seen["server2"] == 0 {
		t.Errorf("load not spread: %v", seen)
	}
}

// Unregistered version: the caller gets a structured error, no dispatch happens.
func TestMissingVersion(t *testing.T) {
	cluster := registry.NewMemoryCluster()
	startServer(t, cluster, "1.0", &HelloServiceImpl1{})

	proxy := client.NewProxy("HelloService", "4.0",
		client.WithDiscovery(discovery(cluster)),
		client.WithCallTimeout(2*time.Second))

	_, err := proxy.Call(context.Background(), "Hello", "Jack1")
	if !errors.Is(err, registry.ErrNoSuchService) {
		t.Errorf("got %v, want ErrNoSuchService", err)
	}
}

// A handler error comes back as a remote error whose message survives the wire.
func TestHandlerErrorSymmetry(t *testing.T) {
	_, addr := startServer(t, nil, "1.0", &FaultyService{})

	proxy := client.NewProxy("HelloService", "1.0",
		client.WithServiceAddress(addr),
		client.WithCallTimeout(2*time.Second))

	_, err := proxy.Call(context.Background(), "Hello", "Jack1")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("got %v, want error containing boom", err)
	}
	var remote *message.RemoteError
	if !errors.As(err, &remote) {
		t.Errorf("error should be a RemoteError, got %T", err)
	}
}

// Static address without discovery also works.
func TestStaticAddress(t *testing.T) {
	_, addr := startServer(t, nil, "1.0", &HelloServiceImpl1{})

	proxy := client.NewProxy("HelloService", "1.0",
		client.WithServiceAddress(addr),
		client.WithCallTimeout(2*time.Second))

	result, err := proxy.Call(context.Background(), "Hello", "Jack1")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if result != "server1: Jack1 Hello from HelloServiceImpl1" {
		t.Errorf("got %v", result)
	}
}

// Session loss: after one server shuts down, discovery stops returning it.
func TestSessionLossRemovesEndpoint(t *testing.T) {
	cluster := registry.NewMemoryCluster()
	svr1, addr1 := startServer(t, cluster, "1.0", &HelloServiceImpl1{})
	startServer(t, cluster, "1.0", &HelloServiceImpl2{})

	if err := svr1.Shutdown(time.Second); err != nil {
		t.Fatal(err)
	}

	disc := discovery(cluster)
	for i := 0; i < 20; i++ {
		got, err := disc.Discover(context.Background(), "HelloService-1.0")
		if err != nil {
			t.Fatal(err)
		}
		if got == addr1 {
			t.Fatal("shut-down server still discoverable")
		}
	}

	proxy := client.NewProxy("HelloService", "1.0",
		client.WithDiscovery(disc),
		client.WithCallTimeout(2*time.Second))
	result, err := proxy.Call(context.Background(), "Hello", "Jack1")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.HasPrefix(result.(string), "server2:") {
		t.Errorf("got %v", result)
	}
}
