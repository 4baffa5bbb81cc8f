// mautrix-tinode - Tinode chat list and contact presentation core.
// Copyright (C) 2026 mautrix-tinode contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package avatar

// HashCode hashes the identity the same way java.lang.String.hashCode does, so that
// other clients pick the same color for the same topic. Non-ASCII code points are
// skipped entirely. Overflow wraps around as in Java.
func HashCode(identity string) int32 {
	var hash int32
	for _, r := range identity {
		if r > 0x7f {
			continue
		}
		hash = 31*hash + int32(r)
	}
	return hash
}

// magnitude is the absolute value of the hash as an unsigned number.
// The magnitude of math.MinInt32 is 1<<31.
func magnitude(hash int32) uint32 {
	if hash < 0 {
		return uint32(-int64(hash))
	}
	return uint32(hash)
}
