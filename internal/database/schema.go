package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied statement by statement; the DSN does not enable
// multiStatements.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS resources (
		id                 BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		owner_id           BIGINT UNSIGNED NOT NULL,
		name               VARCHAR(255)    NOT NULL,
		availability       TINYINT(1)      NOT NULL DEFAULT 1,
		quantity_available INT             NOT NULL DEFAULT 1,
		hourly_rate_cents  BIGINT          NOT NULL DEFAULT 0,
		daily_rate_cents   BIGINT          NOT NULL DEFAULT 0,
		created_at         DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at         DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		PRIMARY KEY (id),
		KEY idx_resources_owner (owner_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id                 BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		resource_id        BIGINT UNSIGNED NOT NULL,
		customer_id        BIGINT UNSIGNED NULL,
		requester_name     VARCHAR(255)    NOT NULL,
		requester_email    VARCHAR(255)    NOT NULL,
		starts_at          DATETIME(6)     NOT NULL,
		ends_at            DATETIME(6)     NOT NULL,
		quantity           INT             NOT NULL DEFAULT 1,
		total_cents        BIGINT          NOT NULL,
		status             ENUM('quotation','pending','confirmed','delivered','returned','late','cancelled') NOT NULL,
		payment_status     ENUM('pending','partial','paid','refunded') NOT NULL DEFAULT 'pending',
		gateway_order_id   VARCHAR(255)    NULL,
		gateway_payment_id VARCHAR(255)    NULL,
		checkout_token     CHAR(36)        NULL,
		created_by         BIGINT UNSIGNED NOT NULL,
		created_at         DATETIME(6)     NOT NULL,
		updated_at         DATETIME(6)     NOT NULL,
		PRIMARY KEY (id),
		KEY idx_reservations_resource_status (resource_id, status, starts_at),
		KEY idx_reservations_customer (customer_id),
		KEY idx_reservations_status_end (status, ends_at),
		CONSTRAINT fk_reservations_resource FOREIGN KEY (resource_id) REFERENCES resources (id),
		CONSTRAINT chk_reservations_range CHECK (ends_at > starts_at),
		CONSTRAINT chk_reservations_total CHECK (total_cents >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservation_events (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		reservation_id BIGINT UNSIGNED NOT NULL,
		actor_id       BIGINT UNSIGNED NOT NULL,
		actor_role     VARCHAR(16)     NOT NULL,
		from_status    VARCHAR(16)     NULL,
		to_status      VARCHAR(16)     NOT NULL,
		note           VARCHAR(1000)   NOT NULL DEFAULT '',
		created_at     DATETIME(6)     NOT NULL,
		PRIMARY KEY (id),
		KEY idx_reservation_events_reservation (reservation_id, id),
		CONSTRAINT fk_reservation_events_reservation FOREIGN KEY (reservation_id) REFERENCES reservations (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS checkouts (
		token            CHAR(36)        NOT NULL,
		requester_id     BIGINT UNSIGNED NOT NULL,
		requester_name   VARCHAR(255)    NOT NULL DEFAULT '',
		requester_email  VARCHAR(255)    NOT NULL DEFAULT '',
		items            JSON            NOT NULL,
		pricing          JSON            NOT NULL,
		delivery_address JSON            NULL,
		billing_address  JSON            NULL,
		status           ENUM('active','completed') NOT NULL DEFAULT 'active',
		reservation_ids  JSON            NULL,
		version          BIGINT UNSIGNED NOT NULL DEFAULT 1,
		created_at       DATETIME(6)     NOT NULL,
		updated_at       DATETIME(6)     NOT NULL,
		PRIMARY KEY (token),
		KEY idx_checkouts_requester (requester_id, status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the reservation engine's tables when they are missing.
// Statements are idempotent, so it is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
