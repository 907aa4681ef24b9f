package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/reqcheck/packages/logging"
	"github.com/abdul-hamid-achik/reqcheck/packages/mock"
	"github.com/spf13/cobra"
)

var (
	mockPortFlag      int
	mockDelayFlag     string
	mockBasePathFlag  string
	mockAPIKeyFlag    string
	mockAPIHeaderFlag string
	mockVerboseFlag   bool
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Start a local reqres.in fixture server",
	Long: `Start an HTTP server that answers like the reqres.in users API, so
the built-in suite can run offline.

Examples:
  reqcheck mock
  reqcheck mock --port 8080 --delay 100ms
  reqcheck mock --api-key local --verbose
  reqcheck run --base-url http://localhost:3000/api --api-key local`,
	Args: cobra.NoArgs,
	RunE: mockCommand,
}

func init() {
	mockCmd.Flags().IntVarP(&mockPortFlag, "port", "p", getEnvInt("REQCHECK_MOCK_PORT", mock.DefaultPort), "Port to listen on (env: REQCHECK_MOCK_PORT)")
	mockCmd.Flags().StringVarP(&mockDelayFlag, "delay", "d", getEnvString("REQCHECK_MOCK_DELAY", "0"), "Delay added to every response, e.g. 100ms (env: REQCHECK_MOCK_DELAY)")
	mockCmd.Flags().StringVar(&mockBasePathFlag, "base-path", getEnvString("REQCHECK_MOCK_BASE_PATH", mock.DefaultBasePath), "Path prefix for all routes (env: REQCHECK_MOCK_BASE_PATH)")
	mockCmd.Flags().StringVar(&mockAPIKeyFlag, "api-key", getEnvString("REQCHECK_MOCK_API_KEY", ""), "Require this API key on every request (env: REQCHECK_MOCK_API_KEY)")
	mockCmd.Flags().StringVar(&mockAPIHeaderFlag, "api-key-header", getEnvString("REQCHECK_MOCK_API_KEY_HEADER", mock.DefaultAPIKeyHeader), "Header carrying the API key (env: REQCHECK_MOCK_API_KEY_HEADER)")
	mockCmd.Flags().BoolVarP(&mockVerboseFlag, "verbose", "v", getEnvBool("REQCHECK_MOCK_VERBOSE", false), "Log every request (env: REQCHECK_MOCK_VERBOSE)")
}

func mockCommand(cmd *cobra.Command, args []string) error {
	var delay time.Duration
	if mockDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(mockDelayFlag)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("invalid delay value %q: %w", mockDelayFlag, err))
		}
	}

	logger := logging.NullLogger()
	if mockVerboseFlag {
		logger = logging.NewWriterLogger(cmd.ErrOrStderr(), "[mock] ")
	}

	opts := []mock.Option{
		mock.WithPort(mockPortFlag),
		mock.WithDelay(delay),
		mock.WithBasePath(mockBasePathFlag),
		mock.WithLogger(logger),
	}
	if mockAPIKeyFlag != "" {
		opts = append(opts, mock.WithAPIKey(mockAPIHeaderFlag, mockAPIKeyFlag))
	}
	server := mock.NewServer(opts...)

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d routes on http://localhost:%d%s\n", len(server.Routes()), mockPortFlag, server.BasePath())
	for _, route := range server.Routes() {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-6s %s%s\n", route.Method, server.BasePath(), route.PathPattern)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return withExitCode(ExitConfigError, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nMock server stopped")
	return nil
}
