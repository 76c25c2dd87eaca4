package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TransactionSignature 交易签名：由金额分桶、目的国与客户风险标志派生的稳定特征键。
// 只含分桶后的特征，不携带原始 PII，用于历史记忆的相似召回。
type TransactionSignature struct {
	// AmountBucket USD 等值金额所在分桶
	AmountBucket int `json:"amount_bucket"`
	// Destination 目的国家代码
	Destination string `json:"destination"`
	// Risky 客户侧风险标志（历史欺诈或低信任设备）
	Risky bool `json:"risky"`
}

// Key 返回签名的稳定字符串键
func (s TransactionSignature) Key() string {
	r := 0
	if s.Risky {
		r = 1
	}
	return fmt.Sprintf("b%03d|%s|r%d", s.AmountBucket, s.Destination, r)
}

// ParseSignatureKey 解析签名键，返回是否解析成功
func ParseSignatureKey(key string) (TransactionSignature, bool) {
	parts := strings.Split(key, "|")
	if len(parts) != 3 || !strings.HasPrefix(parts[0], "b") || !strings.HasPrefix(parts[2], "r") {
		return TransactionSignature{}, false
	}
	bucket, err := strconv.Atoi(strings.TrimPrefix(parts[0], "b"))
	if err != nil {
		return TransactionSignature{}, false
	}
	return TransactionSignature{
		AmountBucket: bucket,
		Destination:  parts[1],
		Risky:        strings.TrimPrefix(parts[2], "r") == "1",
	}, true
}

// SignatureDistance 计算两个签名在分桶特征空间上的距离。
// 目的国不同的代价高于金额分桶相邻偏移，确保同向交易优先匹配。
func SignatureDistance(a, b TransactionSignature) int {
	dist := a.AmountBucket - b.AmountBucket
	if dist < 0 {
		dist = -dist
	}
	if a.Destination != b.Destination {
		dist += 2
	}
	if a.Risky != b.Risky {
		dist++
	}
	return dist
}

// SimilarSignatures 判断两个签名是否足够相似，可作为历史升级依据
func SimilarSignatures(a, b TransactionSignature) bool {
	return SignatureDistance(a, b) <= 1
}

// RankRecords 对候选记忆按相关性原地排序：同客户记录优先于跨客户记录，
// 其次按签名距离升序，距离相同按创建时间倒序。所有记忆后端共用此排序。
func RankRecords(records []MemoryRecord, customerID string, signature TransactionSignature) []MemoryRecord {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		sameA := a.CustomerID == customerID
		sameB := b.CustomerID == customerID
		if sameA != sameB {
			return sameA
		}
		distA := recordDistance(a, signature)
		distB := recordDistance(b, signature)
		if distA != distB {
			return distA < distB
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return records
}

// recordDistance 记录与目标签名的距离，签名不可解析时视为最远
func recordDistance(record MemoryRecord, signature TransactionSignature) int {
	recSig, ok := ParseSignatureKey(record.Signature)
	if !ok {
		return 1 << 30
	}
	return SignatureDistance(signature, recSig)
}
