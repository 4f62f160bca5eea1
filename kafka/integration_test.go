package kafka

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestProvisionAgainstBroker runs only when TEST_KAFKA_BROKERS names
// a reachable cluster, e.g. "localhost:9092".
func TestProvisionAgainstBroker(t *testing.T) {
	brokers := os.Getenv("TEST_KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("TEST_KAFKA_BROKERS not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conf := func() Properties { return Properties{"bootstrap.servers": brokers} }
	desc := ConnectionDescriptor{
		Admin:    &AdminConfig{Conf: conf()},
		Consumer: &ConsumerConfig{Conf: conf(), MetadataConf: &MetadataConfig{AllTopics: true}},
		Producer: &ProducerConfig{Conf: conf()},
	}

	bundle, err := Provision(ctx, desc)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	defer bundle.Close()

	consumer, _ := bundle.Consumer()
	if !consumer.Connected() {
		t.Fatalf("consumer not connected")
	}
	if len(consumer.Metadata().Brokers) == 0 {
		t.Fatalf("consumer handshake returned no brokers")
	}

	admin, _ := bundle.AdminClient()
	cluster, err := admin.Describe(ctx)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if len(cluster.Brokers) == 0 {
		t.Fatalf("Describe() returned no brokers")
	}
}
