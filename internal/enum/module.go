package enum

type ModuleType string

const (
	ModuleTypeProvider ModuleType = "provider"
	ModuleTypeAnalyzer ModuleType = "analyzer"
	ModuleTypeNotifier ModuleType = "notifier"
)

func (t ModuleType) String() string {
	return string(t)
}

type NotificationEvent string

const (
	NotificationNewOrder         NotificationEvent = "new_order"
	NotificationTrackingUpdate   NotificationEvent = "tracking_update"
	NotificationPackageDelivered NotificationEvent = "package_delivered"
)

func (t NotificationEvent) String() string {
	return string(t)
}
