// Package kafka provisions the three connection roles used to talk to a
// Kafka cluster: an admin client, a consumer and a producer.
//
// A ConnectionDescriptor names the roles to build. Every role is optional;
// a nil role config means the role is not requested and the resulting Bundle
// reports it as absent. Requested roles are built concurrently and, unless
// auto-connect is disabled, consumers and producers complete their handshake
// before the Bundle is published. Any failing role fails the whole attempt
// and every handle built during that attempt is closed.
//
//	bundle, err := kafka.Provision(ctx, kafka.ConnectionDescriptor{
//		Producer: &kafka.ProducerConfig{
//			Conf: kafka.Properties{"bootstrap.servers": "localhost:9092"},
//		},
//	})
//	if err != nil {
//		return err
//	}
//	defer bundle.Close()
//
//	producer, ok := bundle.Producer()
//
// Configuration that is only known after other setup has run is provisioned
// with ProvisionAsync and a Resolver.
//
// The clients are franz-go clients; handles expose them through Client().
package kafka
