package serve

import (
	"fmt"
	cmdUtil "github.com/ValentinKolb/xtrl/cmd/util"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/ValentinKolb/xtrl/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the reference display server",
		Long:    `Start the in-memory reference display server. The configuration can be set via command line flags or environment variables. The format of the environment variables is XTRL_<flag> (e.g. XTRL_FAULT_PROFILE=faults.toml)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	cmdUtil.SetupTransportFlags(ServeCmd)

	key := "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Read and write timeout in seconds for client connections, 0 disables it"))

	key = "fault-profile"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Path to a TOML file listing requests the server rejects with injected errors"))

	key = "metrics"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Print the request metrics to stdout when the server stops"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Transport = cmdUtil.GetTransportConfig()
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.FaultProfile = viper.GetString("fault-profile")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Transport.Endpoint == "" {
		return fmt.Errorf("no endpoint configured")
	}
	if serveCmdConfig.TimeoutSecond < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the display server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv, err := server.NewDisplayServer(*serveCmdConfig, t)
	if err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		<-stop
		server.Logger.Infof("Shutting down")
		_ = serv.Close()
	}()

	if err := serv.Serve(); err != nil {
		return err
	}

	if viper.GetBool("metrics") {
		serv.WriteMetrics(os.Stdout)
	}
	return nil
}
