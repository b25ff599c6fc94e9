package usage

import (
	"encoding/binary"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var ErrHostNotFound = errors.New("host not found")

var u64 = binary.BigEndian.Uint64

func i64ToB(value int64) []byte {
	oct := make([]byte, 8)
	binary.BigEndian.PutUint64(oct, uint64(value))
	return oct
}

var (
	keyConnections = []byte("Connections")
	keyCalls       = []byte("Calls")
	keyRx          = []byte("Rx")
	keyTx          = []byte("Tx")
	keyLastSeen    = []byte("LastSeen")
)

// HostUsage is everything that has been recorded about connections from one host
type HostUsage struct {
	Host        string
	Connections int64
	Calls       int64
	Rx          int64
	Tx          int64
	// unix seconds
	LastSeen int64
}

// Store persists per-host usage in a bolt database. There is one bucket per host.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

func MakeStore(dbPath string, now func() time.Time) (*Store, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, now: now}, nil
}

func getI64(bucket *bolt.Bucket, key []byte) int64 {
	v := bucket.Get(key)
	if len(v) != 8 {
		return 0
	}
	return int64(u64(v))
}

func addI64(bucket *bolt.Bucket, key []byte, delta int64) error {
	return bucket.Put(key, i64ToB(getI64(bucket, key)+delta))
}

// Add records one finished connection from host
func (s *Store) Add(host string, calls, rx, tx int64) error {
	err := s.db.Update(func(btx *bolt.Tx) error {
		bucket, err := btx.CreateBucketIfNotExists([]byte(host))
		if err != nil {
			return err
		}
		if err = addI64(bucket, keyConnections, 1); err != nil {
			return err
		}
		if err = addI64(bucket, keyCalls, calls); err != nil {
			return err
		}
		if err = addI64(bucket, keyRx, rx); err != nil {
			return err
		}
		if err = addI64(bucket, keyTx, tx); err != nil {
			return err
		}
		return bucket.Put(keyLastSeen, i64ToB(s.now().Unix()))
	})
	if err != nil {
		log.WithField("host", host).Errorf("failed to record usage: %v", err)
	}
	return err
}

func usageOf(host []byte, bucket *bolt.Bucket) HostUsage {
	return HostUsage{
		Host:        string(host),
		Connections: getI64(bucket, keyConnections),
		Calls:       getI64(bucket, keyCalls),
		Rx:          getI64(bucket, keyRx),
		Tx:          getI64(bucket, keyTx),
		LastSeen:    getI64(bucket, keyLastSeen),
	}
}

func (s *Store) Get(host string) (u HostUsage, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(host))
		if bucket == nil {
			return ErrHostNotFound
		}
		u = usageOf([]byte(host), bucket)
		return nil
	})
	return
}

func (s *Store) List() (usages []HostUsage, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(host []byte, bucket *bolt.Bucket) error {
			usages = append(usages, usageOf(host, bucket))
			return nil
		})
	})
	if usages == nil {
		usages = []HostUsage{}
	}
	return
}

func (s *Store) Delete(host string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket([]byte(host))
	})
	if err == bolt.ErrBucketNotFound {
		return ErrHostNotFound
	}
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
