package codec

import (
	"context"
	"errors"
	"net/rpc"
	"os/exec"
	"sync"
	"sync/atomic"

	goplugin "github.com/hashicorp/go-plugin"
	"github.com/mantonx/transcodecore/internal/core/model"
)

// Handshake is the go-plugin handshake both host and plugin process must
// agree on before any RPC call is attempted. Changing ProtocolVersion
// invalidates every previously built adapter plugin binary.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "TRANSCODECORE_CODEC_ADAPTER",
	MagicCookieValue: "codec-adapter",
}

// AdapterPlugin is the go-plugin.Plugin implementation that exposes a
// CodecAdapter over net/rpc, so an adapter (ffmpegproc or otherwise) can run
// as a separate OS process from the job runner. This mirrors the
// host/plugin split many codec and hardware-vendor SDKs require in
// practice: the adapter process owns whatever native resources it needs,
// and a crash in it does not take down the job runner.
type AdapterPlugin struct {
	Impl CodecAdapter
}

func (p *AdapterPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &adapterRPCServer{impl: p.Impl, handles: newHandleTable()}, nil
}

func (p *AdapterPlugin) Client(b *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &adapterRPCClient{client: c}, nil
}

// PluginMap is passed to goplugin.ClientConfig.Plugins.
var PluginMap = map[string]goplugin.Plugin{
	"codec_adapter": &AdapterPlugin{},
}

// StartAdapterPlugin is called from an adapter plugin's main(): it blocks
// serving RPC requests over stdin/stdout until the host process exits.
func StartAdapterPlugin(impl CodecAdapter) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]goplugin.Plugin{
			"codec_adapter": &AdapterPlugin{Impl: impl},
		},
	})
}

// DialAdapterPlugin launches the adapter binary at path as a subprocess and
// returns a CodecAdapter proxy talking to it over net/rpc. The returned
// *goplugin.Client owns the subprocess; the caller should defer its Kill.
func DialAdapterPlugin(path string) (CodecAdapter, *goplugin.Client, error) {
	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginMap,
		Cmd:             exec.Command(path),
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
	})
	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, err
	}
	raw, err := rpcClient.Dispense("codec_adapter")
	if err != nil {
		client.Kill()
		return nil, nil, err
	}
	adapter, ok := raw.(CodecAdapter)
	if !ok {
		client.Kill()
		return nil, nil, errors.New("codec adapter plugin returned unexpected type")
	}
	return adapter, client, nil
}

// handleTable assigns opaque ids to server-side values so they can be
// referenced across the RPC boundary by id instead of by pointer. It has a
// map per primitive kind, but only readers are ever stored (putReader).
type handleTable struct {
	mu      sync.Mutex
	next    int64
	readers map[int64]Reader
	writers map[int64]Writer
	decoders map[int64]Decoder
	encoders map[int64]Encoder
	resamplers map[int64]Resampler
	scalers map[int64]Scaler
}

func newHandleTable() *handleTable {
	return &handleTable{
		readers:    make(map[int64]Reader),
		writers:    make(map[int64]Writer),
		decoders:   make(map[int64]Decoder),
		encoders:   make(map[int64]Encoder),
		resamplers: make(map[int64]Resampler),
		scalers:    make(map[int64]Scaler),
	}
}

func (t *handleTable) putReader(r Reader) int64 {
	id := atomic.AddInt64(&t.next, 1)
	t.mu.Lock()
	t.readers[id] = r
	t.mu.Unlock()
	return id
}

// adapterRPCServer and adapterRPCClient implement the host<->plugin RPC
// surface. The server exposes only OpenReader over net/rpc. On the client
// side, OpenWriter/OpenDecoder/OpenEncoder/OpenResampler/OpenScaler return
// a "not implemented" error, and the calls remoteReader and Capabilities
// make (Plugin.ReaderStreams, Plugin.ReaderBestStream,
// Plugin.ReaderReadPacket, Plugin.ReaderClose, Plugin.Capabilities) have no
// server-side method here, so they fail (Capabilities then returns an
// empty table).
type adapterRPCServer struct {
	impl    CodecAdapter
	handles *handleTable
}

// OpenReaderArgs and OpenReaderReply are exported because net/rpc only
// registers methods whose argument and reply types are exported.
type OpenReaderArgs struct {
	Path string
}

type OpenReaderReply struct {
	Handle int64
	Err    *model.Error
}

func (s *adapterRPCServer) OpenReader(args OpenReaderArgs, reply *OpenReaderReply) error {
	r, cerr := s.impl.OpenReader(context.Background(), args.Path)
	if cerr != nil {
		reply.Err = cerr
		return nil
	}
	reply.Handle = s.handles.putReader(r)
	return nil
}

type adapterRPCClient struct {
	client *rpc.Client
}

func (c *adapterRPCClient) OpenReader(ctx context.Context, path string) (Reader, *model.Error) {
	var reply OpenReaderReply
	if err := c.client.Call("Plugin.OpenReader", OpenReaderArgs{Path: path}, &reply); err != nil {
		return nil, model.InternalError("codec-plugin", "rpc call failed", err)
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &remoteReader{client: c.client, handle: reply.Handle}, nil
}

func (c *adapterRPCClient) OpenWriter(ctx context.Context, path string, container model.Container) (Writer, *model.Error) {
	return nil, model.InternalError("codec-plugin", "not implemented in reference rpc binding", nil)
}

func (c *adapterRPCClient) OpenDecoder(ctx context.Context, stream model.StreamDescriptor) (Decoder, *model.Error) {
	return nil, model.InternalError("codec-plugin", "not implemented in reference rpc binding", nil)
}

func (c *adapterRPCClient) OpenEncoder(ctx context.Context, params model.EncoderParams, stream model.StreamDescriptor) (Encoder, *model.Error) {
	return nil, model.InternalError("codec-plugin", "not implemented in reference rpc binding", nil)
}

func (c *adapterRPCClient) OpenResampler(ctx context.Context, srcRate, dstRate, srcChannels, dstChannels int, sampleFmt string) (Resampler, *model.Error) {
	return nil, model.InternalError("codec-plugin", "not implemented in reference rpc binding", nil)
}

func (c *adapterRPCClient) OpenScaler(ctx context.Context) (Scaler, *model.Error) {
	return nil, model.InternalError("codec-plugin", "not implemented in reference rpc binding", nil)
}

func (c *adapterRPCClient) Capabilities() Capabilities {
	var caps Capabilities
	_ = c.client.Call("Plugin.Capabilities", struct{}{}, &caps)
	return caps
}

// remoteReader proxies the Reader interface over the same net/rpc client,
// by handle id.
type remoteReader struct {
	client *rpc.Client
	handle int64
}

func (r *remoteReader) Streams(ctx context.Context) ([]model.StreamDescriptor, *model.Error) {
	var reply struct {
		Streams []model.StreamDescriptor
		Err     *model.Error
	}
	if err := r.client.Call("Plugin.ReaderStreams", r.handle, &reply); err != nil {
		return nil, model.InternalError("codec-plugin", "rpc call failed", err)
	}
	return reply.Streams, reply.Err
}

func (r *remoteReader) BestStream(kind model.Kind) (int, bool) {
	var reply struct {
		Index int
		OK    bool
	}
	_ = r.client.Call("Plugin.ReaderBestStream", struct {
		Handle int64
		Kind   model.Kind
	}{r.handle, kind}, &reply)
	return reply.Index, reply.OK
}

func (r *remoteReader) ReadPacket(ctx context.Context) (model.Packet, bool, *model.Error) {
	var reply struct {
		Packet model.Packet
		OK     bool
		Err    *model.Error
	}
	if err := r.client.Call("Plugin.ReaderReadPacket", r.handle, &reply); err != nil {
		return model.Packet{}, false, model.InternalError("codec-plugin", "rpc call failed", err)
	}
	return reply.Packet, reply.OK, reply.Err
}

func (r *remoteReader) Close() error {
	return r.client.Call("Plugin.ReaderClose", r.handle, &struct{}{})
}
