package database

import (
	"context"
	"database/sql"
)

// schema holds the DDL executed at startup. Statements are idempotent
// (CREATE TABLE IF NOT EXISTS) so the server can be restarted against
// an existing database without migrations.
//
// purchases carries two idempotency guards:
//   - transaction_id is unique, one ledger row per gateway reference;
//   - completed_key is a stored generated column that is non-NULL only
//     for completed rows, with a unique key over it, so at most one
//     completed purchase can ever exist per (user, pdf, type) even
//     under concurrent duplicate submissions. MySQL ignores NULL
//     duplicates in unique indexes, so pending/failed retries are
//     unaffected.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		username VARCHAR(255) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password VARCHAR(255) NOT NULL,
		role ENUM('user','admin') NOT NULL DEFAULT 'user',
		status ENUM('active','inactive') NOT NULL DEFAULT 'active',
		upload_fee_paid TINYINT(1) NOT NULL DEFAULT 0,
		last_withdrawal_at DATETIME NULL,
		last_login DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX (token_hash),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS pdfs (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		file_name VARCHAR(255) NOT NULL,
		file_size BIGINT NOT NULL,
		mime_type VARCHAR(100) NOT NULL DEFAULT 'application/pdf',
		cover_photo LONGBLOB,
		pdf_data LONGBLOB,
		user_id BIGINT UNSIGNED NOT NULL,
		download_count BIGINT UNSIGNED NOT NULL DEFAULT 0,
		status ENUM('active','deleted') NOT NULL DEFAULT 'active',
		visibility ENUM('public','private','paid') NOT NULL DEFAULT 'public',
		tags JSON,
		is_paid TINYINT(1) NOT NULL DEFAULT 0,
		price_kobo BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NULL ON UPDATE CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT UNSIGNED NOT NULL,
		pdf_id BIGINT UNSIGNED NULL,
		transaction_type ENUM('pdf_purchase','upload_fee') NOT NULL DEFAULT 'pdf_purchase',
		amount_kobo BIGINT NOT NULL,
		currency CHAR(3) NOT NULL DEFAULT 'NGN',
		payment_method VARCHAR(50) NOT NULL DEFAULT 'unknown',
		transaction_id VARCHAR(100) NOT NULL,
		status ENUM('pending','completed','failed','refunded') NOT NULL DEFAULT 'completed',
		receipt_pdf LONGBLOB,
		receipt_image LONGBLOB,
		purchase_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		completed_key VARCHAR(96) GENERATED ALWAYS AS (
			IF(status = 'completed',
				CONCAT(user_id, ':', IFNULL(pdf_id, 0), ':', transaction_type),
				NULL)
		) STORED,
		UNIQUE KEY uniq_transaction (transaction_id),
		UNIQUE KEY uniq_completed (completed_key),
		INDEX (user_id),
		INDEX (pdf_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (pdf_id) REFERENCES pdfs(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS download_history (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		pdf_id BIGINT UNSIGNED NOT NULL,
		pdf_title VARCHAR(255),
		user_id BIGINT UNSIGNED NOT NULL,
		downloaded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		ip_address VARCHAR(45),
		user_agent TEXT,
		INDEX (pdf_id),
		INDEX (user_id),
		FOREIGN KEY (pdf_id) REFERENCES pdfs(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS withdrawals (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT UNSIGNED NOT NULL,
		bank_name VARCHAR(255) NOT NULL,
		account_number VARCHAR(64) NOT NULL,
		account_name VARCHAR(255) NOT NULL,
		amount_kobo BIGINT NOT NULL,
		status ENUM('pending','paid','declined') NOT NULL DEFAULT 'pending',
		requested_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME NULL,
		INDEX (user_id),
		INDEX (status),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS bookmarks (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT UNSIGNED NOT NULL,
		pdf_id BIGINT UNSIGNED NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uniq_bookmark (user_id, pdf_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (pdf_id) REFERENCES pdfs(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		pdf_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		comment TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX (pdf_id),
		FOREIGN KEY (pdf_id) REFERENCES pdfs(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS pdf_ratings (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		pdf_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		rating INT NOT NULL CHECK (rating >= 1 AND rating <= 5),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uniq_rating (pdf_id, user_id),
		FOREIGN KEY (pdf_id) REFERENCES pdfs(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
}

// InitSchema creates all tables if they do not exist yet.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
