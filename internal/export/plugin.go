package export

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"finsent-backend/plugin/shared"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

// PluginBackend runs the PyTorch side of the export in a python plugin
// process and talks to it over gRPC.
type PluginBackend struct {
	mu       sync.Mutex
	client   *plugin.Client
	exporter shared.Exporter
}

var _ shared.Exporter = (*PluginBackend)(nil)

func StartPluginBackend(pythonExecutable, pluginScript string) (*PluginBackend, error) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "export-plugin",
		Output: os.Stderr,
		Level:  hclog.Info,
	})

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  shared.Handshake,
		Plugins:          shared.PluginMap,
		Cmd:              exec.Command(pythonExecutable, pluginScript),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Logger:           logger,
		SyncStdout:       os.Stderr,
		SyncStderr:       os.Stderr,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error establishing plugin connection: %w", err)
	}

	raw, err := rpcClient.Dispense(shared.ExporterPluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error dispensing '%s': %w", shared.ExporterPluginName, err)
	}

	exporter, ok := raw.(shared.Exporter)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("dispensed interface '%s' is not of expected type shared.Exporter (actual type: %T)", shared.ExporterPluginName, raw)
	}

	return &PluginBackend{client: client, exporter: exporter}, nil
}

func (b *PluginBackend) Export(ctx context.Context, req shared.ExportRequest) (shared.ExportResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exporter == nil {
		return shared.ExportResult{}, fmt.Errorf("export plugin is closed")
	}
	return b.exporter.Export(ctx, req)
}

func (b *PluginBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return
	}
	b.client.Kill()
	b.client = nil
	b.exporter = nil
}
