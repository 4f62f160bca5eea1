package kafka

// Bundle holds the handles of one successful provisioning attempt. It is
// immutable once published. Roles that were not requested are absent.
type Bundle struct {
	admin    *AdminClient
	consumer *Consumer
	producer *Producer
}

// AdminClient returns the admin client handle, if requested.
func (b *Bundle) AdminClient() (*AdminClient, bool) {
	if b == nil || b.admin == nil {
		return nil, false
	}
	return b.admin, true
}

// Consumer returns the consumer handle, if requested.
func (b *Bundle) Consumer() (*Consumer, bool) {
	if b == nil || b.consumer == nil {
		return nil, false
	}
	return b.consumer, true
}

// Producer returns the producer handle, if requested.
func (b *Bundle) Producer() (*Producer, bool) {
	if b == nil || b.producer == nil {
		return nil, false
	}
	return b.producer, true
}

// Has reports whether role is present.
func (b *Bundle) Has(role Role) bool {
	switch role {
	case RoleAdmin:
		_, ok := b.AdminClient()
		return ok
	case RoleConsumer:
		_, ok := b.Consumer()
		return ok
	case RoleProducer:
		_, ok := b.Producer()
		return ok
	default:
		return false
	}
}

// Roles lists the present roles in stable order.
func (b *Bundle) Roles() []Role {
	roles := make([]Role, 0, len(Roles))
	for _, role := range Roles {
		if b.Has(role) {
			roles = append(roles, role)
		}
	}
	return roles
}

// Close closes every handle in the bundle.
func (b *Bundle) Close() {
	if b == nil {
		return
	}
	if b.admin != nil {
		b.admin.Close()
	}
	if b.consumer != nil {
		b.consumer.Close()
	}
	if b.producer != nil {
		b.producer.Close()
	}
}
