package grpcweb

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const maxBody = 1 << 20

// Bridge translates gRPC-Web (browser HTTP/1.1) → native gRPC via TCP.
// Payloads are JSON: application/grpc-web+json frames, or a bare
// application/json body for plain HTTP clients.
type Bridge struct {
	conn *grpc.ClientConn
}

// New dials the gRPC server at addr (e.g. "localhost:50051").
func New(addr string) (*Bridge, error) {
	conn, err := grpc.NewClient(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("grpcweb dial: %w", err)
	}
	return &Bridge{conn: conn}, nil
}

// NewWithConn wraps an existing connection.
func NewWithConn(conn *grpc.ClientConn) *Bridge { return &Bridge{conn: conn} }

func (b *Bridge) Close() { b.conn.Close() }

// Handler forwards POST .../<Method> to /<service>/<Method>. Only the last
// path segment is used, so the handler can be mounted under any prefix.
func (b *Bridge) Handler(service string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		method := "/" + service + "/" + path.Base(r.URL.Path)

		ct := r.Header.Get("Content-Type")
		switch {
		case strings.HasPrefix(ct, "application/grpc-web+json"):
			log.Printf("grpc-web → %s", method)
			b.forwardFramed(w, r, method)
		case strings.HasPrefix(ct, "application/json"):
			log.Printf("json → %s", method)
			b.forwardPlain(w, r, method)
		default:
			http.Error(w, "expected application/grpc-web+json or application/json", http.StatusUnsupportedMediaType)
		}
	})
}

type clientIPKey struct{}

// Gin mounts Handler on a gin route. The caller address comes from
// c.ClientIP, which only honours forwarding headers from trusted proxies.
func (b *Bridge) Gin(service string) gin.HandlerFunc {
	h := b.Handler(service)
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), clientIPKey{}, c.ClientIP())
		h.ServeHTTP(c.Writer, c.Request.WithContext(ctx))
	}
}

func (b *Bridge) forwardFramed(w http.ResponseWriter, r *http.Request, method string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, codes.Internal, "read body failed")
		return
	}
	if len(body) < 5 {
		writeError(w, codes.InvalidArgument, "body too short")
		return
	}

	// grpc-web frame: 1-byte flag + 4-byte big-endian length + message
	msgLen := binary.BigEndian.Uint32(body[1:5])
	if int(msgLen)+5 > len(body) {
		writeError(w, codes.InvalidArgument, "incomplete frame")
		return
	}
	payload := body[5 : 5+msgLen]

	resp, err := b.invoke(r, method, payload)
	if err != nil {
		st := status.Convert(err)
		log.Printf("grpc-web error: %s: %s", st.Code(), st.Message())
		writeError(w, st.Code(), st.Message())
		return
	}
	writeSuccess(w, resp)
}

func (b *Bridge) forwardPlain(w http.ResponseWriter, r *http.Request, method string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeJSONError(w, codes.Internal, "read body failed")
		return
	}
	resp, err := b.invoke(r, method, body)
	if err != nil {
		st := status.Convert(err)
		writeJSONError(w, st.Code(), st.Message())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resp)
}

// invoke calls method with payload passed through untouched.
func (b *Bridge) invoke(r *http.Request, method string, payload []byte) ([]byte, error) {
	ctx := metadata.NewOutgoingContext(r.Context(), forwardMD(r))
	resp := &rawMsg{}
	if err := b.conn.Invoke(ctx, method, &rawMsg{data: payload}, resp, grpc.ForceCodec(rawCodec{})); err != nil {
		return nil, err
	}
	return resp.data, nil
}

// forwardMD copies the caller's credentials and address into gRPC metadata.
// Behind the admin Basic gate the bearer token travels in X-Auth-Token.
func forwardMD(r *http.Request) metadata.MD {
	md := metadata.MD{}
	token := r.Header.Get("Authorization")
	if scheme, _, _ := strings.Cut(token, " "); !strings.EqualFold(scheme, "Bearer") {
		token = r.Header.Get("X-Auth-Token")
		if token != "" && !strings.Contains(token, " ") {
			token = "Bearer " + token
		}
	}
	if token != "" {
		md.Set("authorization", token)
	}
	ip, _ := r.Context().Value(clientIPKey{}).(string)
	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}
	if ip != "" {
		md.Set("x-forwarded-for", ip)
	}
	return md
}

// rawMsg wraps raw JSON bytes.
type rawMsg struct{ data []byte }

// rawCodec passes bytes through without marshal/unmarshal. Its name sets the
// content subtype, so the server decodes with its JSON codec.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	return v.(*rawMsg).data, nil
}
func (rawCodec) Unmarshal(data []byte, v any) error {
	m := v.(*rawMsg)
	m.data = append([]byte(nil), data...)
	return nil
}
func (rawCodec) Name() string { return "json" }

func trailerFrame(code codes.Code, msg string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "grpc-status:%d\r\n", code)
	if msg != "" {
		msg = strings.NewReplacer("\r", " ", "\n", " ").Replace(msg)
		fmt.Fprintf(&buf, "grpc-message:%s\r\n", msg)
	}
	tf := make([]byte, 5+buf.Len())
	tf[0] = 0x80
	binary.BigEndian.PutUint32(tf[1:5], uint32(buf.Len()))
	copy(tf[5:], buf.Bytes())
	return tf
}

func writeError(w http.ResponseWriter, code codes.Code, msg string) {
	w.Header().Set("Content-Type", "application/grpc-web+json")
	w.WriteHeader(http.StatusOK)
	w.Write(trailerFrame(code, msg))
}

func writeSuccess(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/grpc-web+json")
	w.WriteHeader(http.StatusOK)
	// data frame
	df := make([]byte, 5+len(data))
	df[0] = 0x00
	binary.BigEndian.PutUint32(df[1:5], uint32(len(data)))
	copy(df[5:], data)
	w.Write(df)
	w.Write(trailerFrame(codes.OK, ""))
}

var httpStatus = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.OutOfRange:         http.StatusBadRequest,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.NotFound:           http.StatusNotFound,
	codes.AlreadyExists:      http.StatusConflict,
	codes.FailedPrecondition: http.StatusConflict,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.Unavailable:        http.StatusServiceUnavailable,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
	codes.Unimplemented:      http.StatusNotImplemented,
}

func writeJSONError(w http.ResponseWriter, code codes.Code, msg string) {
	hs, ok := httpStatus[code]
	if !ok {
		hs = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(hs)
	json.NewEncoder(w).Encode(map[string]any{"code": code.String(), "message": msg})
}
