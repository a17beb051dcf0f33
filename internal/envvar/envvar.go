package envvar

// Prefix is shared by every environment variable read through viper.
const Prefix = "ANUBAD"

const (
	// AnubadEnv is the environment variable used to determine the environment
	AnubadEnv = "ANUBAD_ENV"

	// AnubadServerHTTPPort is the environment variable used to determine the HTTP port
	AnubadServerHTTPPort = "ANUBAD_SERVER_HTTP_PORT"

	// AnubadServerGRPCPort is the environment variable used to determine the gRPC port
	AnubadServerGRPCPort = "ANUBAD_SERVER_GRPC_PORT"

	// AnubadModelsPath overrides the models directory from the config file.
	AnubadModelsPath = "ANUBAD_MODELS_PATH"

	// AnubadLogFile is the path of the rotated log file.
	AnubadLogFile = "ANUBAD_LOG_FILE"

	// OpenAIAPIKey is read by the openai backend.
	OpenAIAPIKey = "OPENAI_API_KEY"
)
