package protoexport

import (
	"hash/fnv"
	"sort"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func allocateFieldNumbers(fieldBuilders []*protobuilder.FieldBuilder) {
	fieldNames := make([]string, len(fieldBuilders))
	for i, fb := range fieldBuilders {
		fieldNames[i] = string(fb.Name())
	}
	fieldNumbers := fnvNumbers(fieldNames)
	for i, fb := range fieldBuilders {
		fb.SetNumber(protoreflect.FieldNumber(fieldNumbers[i]))
	}
}

func allocateEnumValueNumbers(enumValueBuilders []*protobuilder.EnumValueBuilder) {
	valueNames := make([]string, len(enumValueBuilders))
	for i, evb := range enumValueBuilders {
		valueNames[i] = string(evb.Name())
	}
	valueNumbers := fnvNumbers(valueNames)
	for i, evb := range enumValueBuilders {
		evb.SetNumber(protoreflect.EnumNumber(valueNumbers[i]))
	}
}

const maxNumber = 31767

// fnvNumbers assigns stable tag numbers:
// 1. candidate = (FNV32a(name) % 31767) + 1
// 2. candidates in the reserved block 19000-19999 jump to 20000
// 3. collisions probe linearly, wrapping to 1
// Names are visited in sorted order so collision resolution does not depend
// on declaration order.
func fnvNumbers(names []string) []int {
	if len(names) == 0 {
		return nil
	}
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return names[order[i]] < names[order[j]] })

	out := make([]int, len(names))
	used := make(map[int]bool, len(names))
	for _, idx := range order {
		cand := int(fnv32(names[idx])%maxNumber) + 1
		for {
			if cand >= 19000 && cand <= 19999 {
				cand = 20000
			}
			if !used[cand] {
				break
			}
			cand++
			if cand > maxNumber {
				cand = 1
			}
		}
		used[cand] = true
		out[idx] = cand
	}
	return out
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
