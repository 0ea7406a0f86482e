package engine

type Config struct {
	APIPort      int
	MetricsPort  int
	JobFile      string
	VerifyTopics bool
}
