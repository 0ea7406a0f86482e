package catalog

import (
	"fmt"

	"github.com/IBM/sarama"
)

// VerifyTopic checks against the provider's cluster that the table's
// topic actually exists. Registration itself never dials out; callers
// opt in to verification.
func (c *Catalog) VerifyTopic(tableName string) error {
	t, err := c.Table(tableName)
	if err != nil {
		return err
	}
	p, err := c.Provider(t.Provider)
	if err != nil {
		return err
	}

	sc := sarama.NewConfig()
	if v, err := sarama.ParseKafkaVersion(p.Config.Version); err == nil {
		sc.Version = v
	}
	if p.Config.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if p.Config.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = p.Config.SASLUser, p.Config.SASLPass
	}

	admin, err := sarama.NewClusterAdmin(p.Config.Brokers, sc)
	if err != nil {
		return fmt.Errorf("catalog: connect %q: %w", t.Provider, err)
	}
	defer admin.Close()

	topics, err := admin.ListTopics()
	if err != nil {
		return fmt.Errorf("catalog: list topics on %q: %w", t.Provider, err)
	}
	if _, ok := topics[t.Topic]; !ok {
		return fmt.Errorf("catalog: topic %q not found on provider %q", t.Topic, t.Provider)
	}
	return nil
}
