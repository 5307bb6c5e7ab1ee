package shared

import (
	"context"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
)

var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "FINSENT_PLUGIN",
	MagicCookieValue: "graph-exporter",
}

const ExporterPluginName = "exporter_grpc"

var PluginMap = map[string]plugin.Plugin{
	ExporterPluginName: &ExporterGRPCPlugin{},
}

// DummyInput is the synthetic batch the graph is traced with. Every tensor
// has shape (batch, sequence length).
type DummyInput struct {
	InputIds      [][]int64 `json:"input_ids"`
	AttentionMask [][]int64 `json:"attention_mask"`
	TokenTypeIds  [][]int64 `json:"token_type_ids"`
}

type ExportRequest struct {
	ConfigPath  string `json:"config_path"`
	WeightsPath string `json:"weights_path"`
	OutputPath  string `json:"output_path"`

	NumLabels         int      `json:"num_labels"`
	OpsetVersion      int      `json:"opset_version"`
	DoConstantFolding bool     `json:"do_constant_folding"`
	Strict            bool     `json:"strict"`
	InputNames        []string `json:"input_names"`
	OutputNames       []string `json:"output_names"`

	Dummy DummyInput `json:"dummy"`
}

type ExportResult struct {
	// MissingKeys are model parameters the checkpoint had no weights for;
	// UnexpectedKeys are checkpoint weights the model has no parameter for.
	MissingKeys    []string `json:"missing_keys"`
	UnexpectedKeys []string `json:"unexpected_keys"`
	OutputShape    []int64  `json:"output_shape"`
}

// Exporter traces a checkpoint into an ONNX graph. The implementation lives
// in the python plugin process.
type Exporter interface {
	Export(ctx context.Context, req ExportRequest) (ExportResult, error)
}

type ExporterGRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin

	Impl Exporter
}

func (p *ExporterGRPCPlugin) GRPCServer(broker *plugin.GRPCBroker, s *grpc.Server) error {
	RegisterExporterServer(s, &GRPCServer{Impl: p.Impl})
	return nil
}

func (p *ExporterGRPCPlugin) GRPCClient(ctx context.Context, broker *plugin.GRPCBroker, c *grpc.ClientConn) (interface{}, error) {
	return NewGRPCClient(c), nil
}
