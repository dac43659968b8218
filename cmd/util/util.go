package util

import (
	"fmt"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/ValentinKolb/xtrl/rpc/transport"
	"github.com/ValentinKolb/xtrl/rpc/transport/tcp"
	"github.com/ValentinKolb/xtrl/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// DefaultEndpoint is the socket the server listens on if nothing else is configured
	DefaultEndpoint = "/tmp/xtrl.sock"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupTransportFlags adds the socket flags shared by client and server commands
func SetupTransportFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, DefaultEndpoint, WrapString("The address of the display server (e.g. /tmp/xtrl.sock for unix, localhost:6000 for tcp)"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 64, WrapString("The size of the socket write buffer (in KB)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 64, WrapString("The size of the socket read buffer (in KB)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time (in seconds, only for tcp, -1 keeps the system default)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// SetupClientFlags adds the flags of commands that open a display
func SetupClientFlags(cmd *cobra.Command) {
	SetupTransportFlags(cmd)

	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The dial and write timeout in seconds, waits for replies never time out"))

	key = "strict"
	cmd.PersistentFlags().Bool(key, false, WrapString("Check every request without reply synchronously and report errors where they happen"))

	key = "request-buffer"
	cmd.PersistentFlags().Int(key, 16, WrapString("The size of the outgoing request buffer (in KB)"))
}

// InitConfig loads .env files and sets up viper to read XTRL_ environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("xtrl")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetTransportConfig reads the socket configuration from viper
func GetTransportConfig() common.TransportConfig {
	return common.TransportConfig{
		Endpoint:   viper.GetString("endpoint"),
		Serializer: viper.GetString("serializer"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		},
	}
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Transport:         GetTransportConfig(),
		TimeoutSecond:     viper.GetInt("timeout"),
		Strict:            viper.GetBool("strict"),
		RequestBufferSize: viper.GetInt("request-buffer") * 1024,
		LogLevel:          viper.GetString("log-level"),
	}
}

// GetConnection creates an unconnected display connection for the configured transport
func GetConnection() (transport.IConnection, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPConnection(), nil
	case "unix":
		return unix.NewUnixConnection(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server side of the configured transport
func GetServerTransport() (transport.IServerTransport, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
