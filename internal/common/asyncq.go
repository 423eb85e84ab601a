package common

import (
	"log"

	"github.com/hibiken/asynq"
	"github.com/policyqa/core/internal/config"
)

// client is the global asynq client instance.
var client *asynq.Client

// InitAsyncq starts the asynq client and background server. The server
// runs the conversation summarization task and the cache Stage-C
// candidate pruning sweep.
func InitAsyncq(cfg *config.Config) error {
	aq := cfg.Asynq
	client = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     aq.Redis.Address,
		Password: aq.Redis.Password,
		DB:       aq.Redis.DB,
	})
	go run(aq)
	return nil
}

// GetAsyncqClient returns the global asynq client instance.
func GetAsyncqClient() *asynq.Client {
	return client
}

var handleFunc = map[string]asynq.HandlerFunc{}

// RegisterHandlerFunc registers a handler for a task type before InitAsyncq runs.
func RegisterHandlerFunc(taskType string, handlerFunc asynq.HandlerFunc) {
	handleFunc[taskType] = handlerFunc
}

func run(cfg *config.AsynqConfig) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	mux := asynq.NewServeMux()
	for typ, handler := range handleFunc {
		mux.HandleFunc(typ, handler)
	}

	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run asynq server: %v", err)
	}
}
