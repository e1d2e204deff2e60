package sqlstore

const postgresSchema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	sku TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
	stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
	low_stock_threshold INTEGER NOT NULL DEFAULT 10,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS products_category_idx ON products (category);

CREATE TABLE IF NOT EXISTS inventory_movements (
	id TEXT PRIMARY KEY,
	product_id TEXT NOT NULL REFERENCES products(id),
	type TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	previous_stock INTEGER NOT NULL,
	new_stock INTEGER NOT NULL,
	reference_type TEXT NOT NULL DEFAULT '',
	reference_id TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	actor_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS inventory_movements_product_created_idx ON inventory_movements (product_id, created_at);

CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	loyalty_points BIGINT NOT NULL DEFAULT 0 CHECK (loyalty_points >= 0),
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS customers_email_idx ON customers (lower(email)) WHERE email <> '';

CREATE TABLE IF NOT EXISTS promotions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	value NUMERIC(14,2) NOT NULL,
	minimum_purchase_cents BIGINT,
	usage_limit INTEGER,
	usage_count INTEGER NOT NULL DEFAULT 0,
	start_date TIMESTAMPTZ NOT NULL,
	end_date TIMESTAMPTZ NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	CHECK (usage_limit IS NULL OR usage_count <= usage_limit)
);

CREATE TABLE IF NOT EXISTS sales (
	id TEXT PRIMARY KEY,
	transaction_number TEXT NOT NULL,
	customer_id TEXT REFERENCES customers(id),
	actor_id TEXT NOT NULL,
	subtotal_cents BIGINT NOT NULL,
	discount_cents BIGINT NOT NULL,
	tax_cents BIGINT NOT NULL,
	total_cents BIGINT NOT NULL,
	payment_method TEXT NOT NULL,
	amount_paid_cents BIGINT NOT NULL,
	change_cents BIGINT NOT NULL,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	promotion_code TEXT NOT NULL DEFAULT '',
	loyalty_points_awarded BIGINT NOT NULL DEFAULT 0,
	idempotency_key TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT sales_transaction_number_key UNIQUE (transaction_number),
	CONSTRAINT sales_idempotency_key_key UNIQUE (idempotency_key)
);
CREATE INDEX IF NOT EXISTS sales_status_created_idx ON sales (status, created_at);
CREATE INDEX IF NOT EXISTS sales_customer_idx ON sales (customer_id);

CREATE TABLE IF NOT EXISTS sale_items (
	id TEXT PRIMARY KEY,
	sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
	product_id TEXT NOT NULL REFERENCES products(id),
	product_name TEXT NOT NULL,
	sku TEXT NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	unit_price_cents BIGINT NOT NULL,
	discount_cents BIGINT NOT NULL DEFAULT 0,
	total_price_cents BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS sale_items_sale_idx ON sale_items (sale_id);
CREATE INDEX IF NOT EXISTS sale_items_product_idx ON sale_items (product_id);

CREATE TABLE IF NOT EXISTS sale_cancellations (
	sale_id TEXT PRIMARY KEY REFERENCES sales(id),
	reason TEXT NOT NULL DEFAULT '',
	actor_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS app_users (
	username TEXT PRIMARY KEY,
	password TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	sku TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
	stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
	low_stock_threshold INTEGER NOT NULL DEFAULT 10,
	active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS products_category_idx ON products (category);

CREATE TABLE IF NOT EXISTS inventory_movements (
	id TEXT PRIMARY KEY,
	product_id TEXT NOT NULL REFERENCES products(id),
	type TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	previous_stock INTEGER NOT NULL,
	new_stock INTEGER NOT NULL,
	reference_type TEXT NOT NULL DEFAULT '',
	reference_id TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	actor_id TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS inventory_movements_product_created_idx ON inventory_movements (product_id, created_at);

CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	loyalty_points INTEGER NOT NULL DEFAULT 0 CHECK (loyalty_points >= 0),
	status TEXT NOT NULL DEFAULT 'active',
	created_at DATETIME NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS customers_email_idx ON customers (lower(email)) WHERE email <> '';

CREATE TABLE IF NOT EXISTS promotions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	value TEXT NOT NULL,
	minimum_purchase_cents INTEGER,
	usage_limit INTEGER,
	usage_count INTEGER NOT NULL DEFAULT 0,
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	CHECK (usage_limit IS NULL OR usage_count <= usage_limit)
);

CREATE TABLE IF NOT EXISTS sales (
	id TEXT PRIMARY KEY,
	transaction_number TEXT NOT NULL UNIQUE,
	customer_id TEXT REFERENCES customers(id),
	actor_id TEXT NOT NULL,
	subtotal_cents INTEGER NOT NULL,
	discount_cents INTEGER NOT NULL,
	tax_cents INTEGER NOT NULL,
	total_cents INTEGER NOT NULL,
	payment_method TEXT NOT NULL,
	amount_paid_cents INTEGER NOT NULL,
	change_cents INTEGER NOT NULL,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	promotion_code TEXT NOT NULL DEFAULT '',
	loyalty_points_awarded INTEGER NOT NULL DEFAULT 0,
	idempotency_key TEXT UNIQUE,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS sales_status_created_idx ON sales (status, created_at);
CREATE INDEX IF NOT EXISTS sales_customer_idx ON sales (customer_id);

CREATE TABLE IF NOT EXISTS sale_items (
	id TEXT PRIMARY KEY,
	sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
	product_id TEXT NOT NULL REFERENCES products(id),
	product_name TEXT NOT NULL,
	sku TEXT NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	unit_price_cents INTEGER NOT NULL,
	discount_cents INTEGER NOT NULL DEFAULT 0,
	total_price_cents INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sale_items_sale_idx ON sale_items (sale_id);
CREATE INDEX IF NOT EXISTS sale_items_product_idx ON sale_items (product_id);

CREATE TABLE IF NOT EXISTS sale_cancellations (
	sale_id TEXT PRIMARY KEY REFERENCES sales(id),
	reason TEXT NOT NULL DEFAULT '',
	actor_id TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS app_users (
	username TEXT PRIMARY KEY,
	password TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)
`
