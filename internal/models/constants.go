package models

const (
	SpotAvailable = "available"
	SpotOccupied  = "occupied"
)

const (
	ReservationOpen   = "open"
	ReservationClosed = "closed"
)

const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
	JobCancelled  = "cancelled"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	ActivityBookingCreated   = "booking_created"
	ActivityBookingCompleted = "booking_completed"
	ActivityExportRequested  = "export_requested"
	ActivityExportCompleted  = "export_completed"
	ActivityExportCancelled  = "export_cancelled"
	ActivityExportDownloaded = "export_downloaded"
	ActivityReminderSent     = "reminder_sent"
)

const (
	// DefaultExportRetentionHours срок жизни готового артефакта экспорта
	DefaultExportRetentionHours = 24

	// ExportQueueSize размер очереди воркера экспорта
	ExportQueueSize = 100

	// DefaultPaginationSize размер пагинации истории по умолчанию
	DefaultPaginationSize = 10

	// MaxPaginationSize верхняя граница per_page
	MaxPaginationSize = 100

	// OccupancyCacheTTL время жизни кэша занятости (в секундах)
	OccupancyCacheTTL = 60

	// LotsCacheTTL время жизни кэша списка парковок (в секундах)
	LotsCacheTTL = 5 * 60

	// DashboardCacheTTL время жизни кэша дашборда (в секундах)
	DashboardCacheTTL = 5 * 60

	// ReservationsCacheTTL время жизни кэша первой страницы истории (в секундах)
	ReservationsCacheTTL = 2 * 60

	// ReminderLoginDays дней без входа до напоминания
	ReminderLoginDays = 7

	// ReminderBookingDays дней без бронирования до напоминания
	ReminderBookingDays = 14
)
