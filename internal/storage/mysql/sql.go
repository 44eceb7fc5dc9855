package mysql

// Descriptive fields take the freshly scraped value when present and keep
// the stored one otherwise (the source sometimes omits a field it showed
// before). scraped_at is first-seen and never overwritten; closed_at is
// unconditionally cleared, which is the re-listing policy: a reappearing
// listing_id continues its own history.
const upsertPropertySQL = `
INSERT INTO properties
  (listing_id, address, pub_date, access, structure, land_area, building_area, build_at, floors, detail_url, scraped_at, closed_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
ON DUPLICATE KEY UPDATE
  address       = COALESCE(VALUES(address), properties.address),
  pub_date      = COALESCE(VALUES(pub_date), properties.pub_date),
  access        = COALESCE(VALUES(access), properties.access),
  structure     = COALESCE(VALUES(structure), properties.structure),
  land_area     = COALESCE(VALUES(land_area), properties.land_area),
  building_area = COALESCE(VALUES(building_area), properties.building_area),
  build_at      = COALESCE(VALUES(build_at), properties.build_at),
  floors        = COALESCE(VALUES(floors), properties.floors),
  detail_url    = COALESCE(VALUES(detail_url), properties.detail_url),
  closed_at     = NULL
`

const selectPropertyIDSQL = `SELECT id FROM properties WHERE listing_id = ?`

// FOR UPDATE so two writers cannot both read the same latest timestamp.
const selectLatestObservedAtSQL = `
SELECT MAX(scraped_at) FROM price_history WHERE property_id = ? FOR UPDATE
`

const insertObservationSQL = `
INSERT INTO price_history (property_id, price, gross, scraped_at)
VALUES (?, ?, ?, ?)
`

const selectPropertyStateSQL = `
SELECT
  p.id, p.listing_id, p.address, p.pub_date, p.access, p.structure,
  p.land_area, p.building_area, p.build_at, p.floors, p.detail_url,
  p.scraped_at, p.closed_at,
  h.id, h.price, h.gross, h.scraped_at
FROM properties p
LEFT JOIN price_history h
  ON h.property_id = p.id
 AND h.id = (SELECT h2.id FROM price_history h2
             WHERE h2.property_id = p.id
             ORDER BY h2.scraped_at DESC, h2.id DESC LIMIT 1)
WHERE p.listing_id = ?
`

const selectActiveListingIDsSQL = `
SELECT listing_id FROM properties WHERE closed_at IS NULL ORDER BY listing_id
`

// markClosedPrefix is completed with a placeholder per listing_id. Already
// closed rows keep their original close date.
const markClosedPrefix = `
UPDATE properties SET closed_at = ? WHERE closed_at IS NULL AND listing_id IN (`

const priceTrendsSQL = `
SELECT
  DATE(scraped_at)  AS day,
  AVG(price)        AS avg_price,
  MIN(price)        AS min_price,
  MAX(price)        AS max_price,
  COUNT(id)         AS cnt
FROM price_history
WHERE scraped_at >= ?
GROUP BY DATE(scraped_at)
ORDER BY DATE(scraped_at)
`

const listPropertiesSQL = `
SELECT
  p.id, p.listing_id, p.address, p.pub_date, p.access, p.structure,
  p.land_area, p.building_area, p.build_at, p.floors, p.detail_url,
  p.scraped_at, p.closed_at,
  h.price, h.gross, h.scraped_at
FROM properties p
LEFT JOIN price_history h
  ON h.property_id = p.id
 AND h.id = (SELECT h2.id FROM price_history h2
             WHERE h2.property_id = p.id
             ORDER BY h2.scraped_at DESC, h2.id DESC LIMIT 1)
ORDER BY p.listing_id
`
